// Package report turns traversal output into the run's artifacts: the
// per-course CSV, the full course list CSV, inline text/quiz payload files,
// and the end-of-run failure summary. The download core only supplies
// complete, correctly typed records; everything here is plain I/O.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"teachable-dl/internal/domain"
)

// Row is one attachment record for the per-course CSV. Rows cover every
// attachment the traversal saw, independent of the download type filter.
type Row struct {
	CourseID           int64
	CourseName         string
	ModulePosition     int
	ModuleID           int64
	ModuleName         string
	LecturePosition    int
	LectureID          int64
	LectureName        string
	LectureIsPublished bool
	AttachmentPosition int
	AttachmentID       int64
	AttachmentName     string
	AttachmentKind     domain.AttachmentKind
	AttachmentURL      string
	ThumbnailURL       string
	MediaDuration      int64
}

// BuildRows flattens a populated course tree into CSV rows sorted by
// section, lecture and attachment position. Transfer completion order never
// influences the report; ordering is applied here over collected data.
func BuildRows(course *domain.Course) []Row {
	var rows []Row
	for _, section := range course.Sections {
		for _, lecture := range section.Lectures {
			for _, attachment := range lecture.Attachments {
				rows = append(rows, Row{
					CourseID:           course.ID,
					CourseName:         course.Name,
					ModulePosition:     section.Position,
					ModuleID:           section.ID,
					ModuleName:         section.Name,
					LecturePosition:    lecture.Position,
					LectureID:          lecture.ID,
					LectureName:        lecture.Name,
					LectureIsPublished: lecture.IsPublished,
					AttachmentPosition: attachment.Position,
					AttachmentID:       attachment.ID,
					AttachmentName:     attachment.Name,
					AttachmentKind:     attachment.Kind,
					AttachmentURL:      attachment.URL,
					ThumbnailURL:       attachment.ThumbnailURL,
					MediaDuration:      attachment.Duration,
				})
			}
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ModulePosition != rows[j].ModulePosition {
			return rows[i].ModulePosition < rows[j].ModulePosition
		}
		if rows[i].LecturePosition != rows[j].LecturePosition {
			return rows[i].LecturePosition < rows[j].LecturePosition
		}
		return rows[i].AttachmentPosition < rows[j].AttachmentPosition
	})
	return rows
}

var courseCSVHeader = []string{
	"course_id", "course_name",
	"module_position", "module_id", "module_name",
	"lecture_position", "lecture_id", "lecture_name", "lecture_is_published",
	"attachment_position", "attachment_id", "attachment_name",
	"attachment_kind", "attachment_url", "url_thumbnail", "media_duration",
}

// WriteCourseCSV writes the per-course attachment report, semicolon
// delimited for spreadsheet imports.
func WriteCourseCSV(path string, rows []Row) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Comma = ';'
	if err := w.Write(courseCSVHeader); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.CourseID, 10),
			cleanText(row.CourseName),
			strconv.Itoa(row.ModulePosition),
			strconv.FormatInt(row.ModuleID, 10),
			cleanText(row.ModuleName),
			strconv.Itoa(row.LecturePosition),
			strconv.FormatInt(row.LectureID, 10),
			cleanText(row.LectureName),
			strconv.FormatBool(row.LectureIsPublished),
			strconv.Itoa(row.AttachmentPosition),
			strconv.FormatInt(row.AttachmentID, 10),
			cleanText(row.AttachmentName),
			string(row.AttachmentKind),
			row.AttachmentURL,
			row.ThumbnailURL,
			strconv.FormatInt(row.MediaDuration, 10),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

// WriteCourseListCSV writes the full course listing produced by the
// `courses` command.
func WriteCourseListCSV(path string, courses []domain.Course) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create course list: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"id", "name", "heading", "is_published"}); err != nil {
		return fmt.Errorf("write course list header: %w", err)
	}
	for _, course := range courses {
		record := []string{
			strconv.FormatInt(course.ID, 10),
			cleanText(course.Name),
			cleanText(course.Heading),
			strconv.FormatBool(course.IsPublished),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write course list row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush course list: %w", err)
	}
	return nil
}

// SaveTextAttachment writes an inline text/code payload as an HTML file.
func SaveTextAttachment(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// SaveQuizAttachment writes a quiz payload as JSON.
func SaveQuizAttachment(path string, quiz map[string]any) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("encode quiz: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// cleanText drops invalid byte sequences occasionally present in course
// metadata exported from legacy systems.
func cleanText(s string) string {
	return strings.ToValidUTF8(s, "?")
}
