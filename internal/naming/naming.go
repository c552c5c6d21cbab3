// Package naming derives deterministic, filesystem-safe names for course
// directories and attachment files. All functions are pure except for the
// directory scan helpers at the bottom.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"teachable-dl/internal/transfer"
)

// MaxFilenameLength bounds sanitized names. Common filesystems cap component
// names at 255 bytes; the positional prefix and extension stay within that.
const MaxFilenameLength = 255

var unsafeChars = regexp.MustCompile(`[\\/*?:"><|]`)

// SafeFilename strips characters that are illegal on common filesystems,
// collapses whitespace to underscores and truncates to max bytes.
func SafeFilename(name string, max int) string {
	if name == "" {
		return ""
	}
	if max <= 0 {
		max = MaxFilenameLength
	}

	name = norm.NFC.String(name)
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), "_")
	name = strings.ReplaceAll(name, ",", "")
	name = strings.ReplaceAll(name, "_-_", "-")

	if len(name) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}

// AttachmentFilename builds the deterministic per-attachment filename:
// {section:02d}_{lecture:02d}_{attachment:02d}_{id}_{sanitized name}.
func AttachmentFilename(sectionPos, lecturePos, attachmentPos int, attachmentID int64, name string) string {
	return fmt.Sprintf("%02d_%02d_%02d_%d_%s",
		sectionPos, lecturePos, attachmentPos, attachmentID, SafeFilename(name, MaxFilenameLength))
}

// CourseDirName builds the per-course output directory name.
func CourseDirName(courseID int64, courseName string) string {
	return fmt.Sprintf("%d - %s", courseID, SafeFilename(courseName, MaxFilenameLength))
}

// FindByAttachmentID scans dir for a file whose name embeds the attachment id
// marker. Used to detect an already-downloaded attachment under an outdated
// name after lecture or section positions shifted.
func FindByAttachmentID(dir string, attachmentID int64) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	marker := fmt.Sprintf("_%d_", attachmentID)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// staging files hold unverified bytes and must never reach a final name
		if strings.HasSuffix(entry.Name(), transfer.StagingSuffix) {
			continue
		}
		if strings.Contains(entry.Name(), marker) {
			return filepath.Join(dir, entry.Name()), true
		}
	}
	return "", false
}

// RenameForAttachment renames an existing file holding the attachment id to
// the current deterministic filename. Returns the previous path when a
// rename actually happened.
func RenameForAttachment(dir, newFilename string, attachmentID int64) (string, error) {
	existing, ok := FindByAttachmentID(dir, attachmentID)
	if !ok {
		return "", nil
	}

	newPath := filepath.Join(dir, newFilename)
	if existing == newPath {
		return "", nil
	}
	if err := os.Rename(existing, newPath); err != nil {
		return "", fmt.Errorf("rename %s: %w", existing, err)
	}
	return existing, nil
}

// BackupExisting renames path out of the way with a creation-timestamp
// suffix, preserving prior report files before a fresh run overwrites them.
func BackupExisting(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	stamp := info.ModTime().UTC().Format("2006-01-02_15-04-05")
	ext := filepath.Ext(path)
	backup := strings.TrimSuffix(path, ext) + "_" + stamp + ext
	if _, err := os.Stat(backup); err == nil {
		return "", nil // a backup for this timestamp already exists
	}

	if err := os.Rename(path, backup); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	return backup, nil
}
