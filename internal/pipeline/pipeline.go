// Package pipeline drives one run: it traverses courses, writes report
// artifacts, and feeds download tasks to the manager while transfers are
// already in flight.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"teachable-dl/internal/domain"
	"teachable-dl/internal/downloader"
	"teachable-dl/internal/naming"
	"teachable-dl/internal/report"
	"teachable-dl/internal/teachable"
)

// downloadableKinds are fetched through the transfer protocol; text and quiz
// payloads arrive inline with the lecture and are saved during traversal.
var downloadableKinds = map[domain.AttachmentKind]bool{
	domain.KindVideo:    true,
	domain.KindPDFEmbed: true,
	domain.KindFile:     true,
	domain.KindImage:    true,
	domain.KindAudio:    true,
}

// Config configures a run of the pipeline.
type Config struct {
	OutputDir string
	Types     map[domain.AttachmentKind]bool
	ModuleID  int64
	LectureID int64
	Logger    *logrus.Logger
}

type Pipeline struct {
	cfg     Config
	client  *teachable.Client
	manager *downloader.Manager
}

func New(cfg Config, client *teachable.Client, manager *downloader.Manager) *Pipeline {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Pipeline{cfg: cfg, client: client, manager: manager}
}

// ProcessCourse traverses one course, writes its report artifacts, and
// enqueues download tasks for attachments matching the type filter. The
// report always covers every attachment seen, independent of that filter.
func (p *Pipeline) ProcessCourse(ctx context.Context, courseID int64) error {
	logger := p.cfg.Logger.WithField("course_id", courseID)

	course, err := p.client.GetCourse(ctx, courseID)
	if err != nil {
		if teachable.IsNotFound(err) {
			return fmt.Errorf("course %d not found", courseID)
		}
		return fmt.Errorf("fetch course %d: %w", courseID, err)
	}
	logger.WithField("course", course.Name).Info("processing course")

	courseDir, err := p.ensureCourseDir(logger, course)
	if err != nil {
		return err
	}

	reportPath := filepath.Join(courseDir, "course_data.csv")
	if backup, err := naming.BackupExisting(reportPath); err != nil {
		logger.Warnf("backup previous report: %v", err)
	} else if backup != "" {
		logger.WithField("backup", filepath.Base(backup)).Info("previous report preserved")
	}

	content, err := p.client.GetCourseContent(ctx, courseID)
	if err != nil {
		return fmt.Errorf("fetch course content %d: %w", courseID, err)
	}

	filtered := p.filterContent(content)
	for _, section := range filtered.Sections {
		logger.WithField("section", section.Name).Info("processing section")
		for _, lecture := range section.Lectures {
			p.handleLecture(logger, courseDir, filtered, section, lecture)
		}
	}

	rows := report.BuildRows(filtered)
	if err := report.WriteCourseCSV(reportPath, rows); err != nil {
		return fmt.Errorf("write course report: %w", err)
	}
	logger.WithField("rows", len(rows)).Info("course report written")
	return nil
}

// ensureCourseDir creates the course output directory, first renaming a
// directory left by an earlier run under the course's previous name.
func (p *Pipeline) ensureCourseDir(logger *logrus.Entry, course *domain.Course) (string, error) {
	dirname := naming.CourseDirName(course.ID, course.Name)
	target := filepath.Join(p.cfg.OutputDir, dirname)

	if existing, ok := findCourseDir(p.cfg.OutputDir, course.ID); ok && existing != target {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			if err := os.Rename(existing, target); err != nil {
				logger.Warnf("rename course directory: %v", err)
			} else {
				logger.WithFields(logrus.Fields{
					"from": filepath.Base(existing),
					"to":   dirname,
				}).Info("course directory renamed")
			}
		} else {
			logger.WithField("target", dirname).Warn("rename skipped, target directory already exists")
		}
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create course directory: %w", err)
	}
	return target, nil
}

func (p *Pipeline) filterContent(course *domain.Course) *domain.Course {
	if p.cfg.ModuleID == 0 && p.cfg.LectureID == 0 {
		return course
	}

	filtered := *course
	filtered.Sections = nil
	for _, section := range course.Sections {
		if p.cfg.ModuleID != 0 && section.ID != p.cfg.ModuleID {
			continue
		}
		if p.cfg.LectureID != 0 {
			kept := section
			kept.Lectures = nil
			for _, lecture := range section.Lectures {
				if lecture.ID == p.cfg.LectureID {
					kept.Lectures = append(kept.Lectures, lecture)
				}
			}
			if len(kept.Lectures) == 0 {
				continue
			}
			filtered.Sections = append(filtered.Sections, kept)
			continue
		}
		filtered.Sections = append(filtered.Sections, section)
	}
	return &filtered
}

func (p *Pipeline) handleLecture(logger *logrus.Entry, courseDir string, course *domain.Course, section domain.Section, lecture domain.Lecture) {
	for _, attachment := range lecture.Attachments {
		filename := naming.AttachmentFilename(section.Position, lecture.Position, attachment.Position, attachment.ID, attachment.Name)

		switch attachment.Kind {
		case domain.KindText, domain.KindCodeEmbed, domain.KindCodeDisplay:
			if attachment.Text == "" {
				continue
			}
			path := filepath.Join(courseDir, filename+".html")
			if err := report.SaveTextAttachment(path, attachment.Text); err != nil {
				logger.Warnf("save text attachment %d: %v", attachment.ID, err)
			}
			continue
		case domain.KindQuiz:
			if attachment.Quiz == nil {
				continue
			}
			path := filepath.Join(courseDir, filename+"_quiz.json")
			if err := report.SaveQuizAttachment(path, attachment.Quiz); err != nil {
				logger.Warnf("save quiz attachment %d: %v", attachment.ID, err)
			}
			continue
		}

		if !downloadableKinds[attachment.Kind] {
			continue
		}
		if len(p.cfg.Types) > 0 && !p.cfg.Types[attachment.Kind] {
			continue
		}

		p.manager.Add(domain.DownloadTask{
			AttachmentID:       attachment.ID,
			AttachmentKind:     attachment.Kind,
			AttachmentName:     attachment.Name,
			URL:                attachment.URL,
			DestinationPath:    filepath.Join(courseDir, filename),
			CourseID:           course.ID,
			CourseName:         course.Name,
			SectionID:          section.ID,
			SectionName:        section.Name,
			SectionPosition:    section.Position,
			LectureID:          lecture.ID,
			LectureName:        lecture.Name,
			LecturePosition:    lecture.Position,
			AttachmentPosition: attachment.Position,
		})
	}
}

// findCourseDir locates an existing "{id} - {name}" directory for a course.
func findCourseDir(baseDir string, courseID int64) (string, bool) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return "", false
	}
	prefix := fmt.Sprintf("%d - ", courseID)
	for _, entry := range entries {
		if entry.IsDir() && len(entry.Name()) > len(prefix) && entry.Name()[:len(prefix)] == prefix {
			return filepath.Join(baseDir, entry.Name()), true
		}
	}
	return "", false
}
