package teachable

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"teachable-dl/internal/domain"
)

// ListCourses walks the paginated course listing until the server reports
// the last page. A page fetch failure halts pagination and returns whatever
// was collected so far; callers must tolerate an incomplete listing.
func (c *Client) ListCourses(ctx context.Context) ([]domain.Course, error) {
	var courses []domain.Course
	page := 1
	for {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("per", strconv.Itoa(c.cfg.PerPage))

		var resp coursesResponse
		if err := c.Get(ctx, "/courses", params, &resp); err != nil {
			if ctx.Err() != nil {
				return courses, ctx.Err()
			}
			c.cfg.Logger.WithField("page", page).Warnf("course listing stopped early: %v", err)
			return courses, nil
		}

		for _, cj := range resp.Courses {
			courses = append(courses, domain.Course{
				ID:          cj.ID,
				Name:        cj.Name,
				Heading:     cj.Heading,
				IsPublished: cj.IsPublished,
			})
		}

		current := resp.Meta.Page
		if current == 0 {
			current = page
		}
		if current >= resp.Meta.NumberOfPages {
			return courses, nil
		}
		page++
	}
}

// GetCourse fetches the course header plus its section/lecture skeleton.
// Lecture attachments are not populated; use GetCourseContent for the full tree.
func (c *Client) GetCourse(ctx context.Context, courseID int64) (*domain.Course, error) {
	var resp courseResponse
	if err := c.Get(ctx, fmt.Sprintf("/courses/%d", courseID), nil, &resp); err != nil {
		return nil, err
	}

	course := &domain.Course{
		ID:          resp.Course.ID,
		Name:        resp.Course.Name,
		Heading:     resp.Course.Heading,
		IsPublished: resp.Course.IsPublished,
	}
	for _, sj := range resp.Course.LectureSections {
		section := domain.Section{
			ID:       sj.ID,
			Name:     sj.Name,
			Position: sj.Position,
		}
		for _, lj := range sj.Lectures {
			section.Lectures = append(section.Lectures, domain.Lecture{
				ID:        lj.ID,
				Name:      lj.Name,
				Position:  lj.Position,
				SectionID: sj.ID,
			})
		}
		course.Sections = append(course.Sections, section)
	}
	return course, nil
}

// GetCourseContent returns the fully populated tree for a course. The API
// has no bulk attachment endpoint, so every lecture costs one detail call
// and every video attachment one more. A failed lecture fetch is logged and
// the lecture skipped; it never fails the whole course.
func (c *Client) GetCourseContent(ctx context.Context, courseID int64) (*domain.Course, error) {
	course, err := c.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	for si := range course.Sections {
		section := &course.Sections[si]
		detailed := make([]domain.Lecture, 0, len(section.Lectures))
		for _, stub := range section.Lectures {
			if err := ctx.Err(); err != nil {
				return course, err
			}

			lecture, err := c.GetLecture(ctx, courseID, stub.ID)
			if err != nil {
				c.cfg.Logger.WithFields(map[string]any{
					"course_id":  courseID,
					"lecture_id": stub.ID,
				}).Errorf("fetch lecture details: %v", err)
				continue
			}
			lecture.SectionID = section.ID
			detailed = append(detailed, *lecture)
		}
		section.Lectures = detailed
	}
	return course, nil
}

// GetLecture fetches one lecture with its attachments and enriches video
// attachments with thumbnail and duration from the per-video endpoint.
func (c *Client) GetLecture(ctx context.Context, courseID, lectureID int64) (*domain.Lecture, error) {
	var resp lectureResponse
	if err := c.Get(ctx, fmt.Sprintf("/courses/%d/lectures/%d", courseID, lectureID), nil, &resp); err != nil {
		return nil, err
	}

	lecture := &domain.Lecture{
		ID:          resp.Lecture.ID,
		Name:        resp.Lecture.Name,
		Position:    resp.Lecture.Position,
		IsPublished: resp.Lecture.IsPublished,
	}

	for _, aj := range resp.Lecture.Attachments {
		if aj.Kind == "" {
			c.cfg.Logger.WithField("attachment_id", aj.ID).Warn("attachment without kind, skipping")
			continue
		}

		attachment := domain.Attachment{
			ID:       aj.ID,
			Name:     norm.NFC.String(aj.Name),
			Kind:     domain.AttachmentKind(aj.Kind),
			URL:      aj.URL,
			Position: aj.Position,
			Text:     aj.Text,
			Quiz:     aj.Quiz,
		}

		if attachment.Kind == domain.KindVideo {
			video, err := c.getVideoDetails(ctx, courseID, lectureID, aj.ID)
			switch {
			case err == nil:
				attachment.ThumbnailURL = video.URLThumbnail
				attachment.Duration = video.MediaDuration
			case IsNotFound(err):
				c.cfg.Logger.WithFields(map[string]any{
					"attachment_id": aj.ID,
					"lecture_id":    lectureID,
				}).Warn("video details not found")
			default:
				c.cfg.Logger.WithFields(map[string]any{
					"attachment_id": aj.ID,
					"lecture_id":    lectureID,
				}).Errorf("fetch video details: %v", err)
			}
		}

		lecture.Attachments = append(lecture.Attachments, attachment)
	}

	return lecture, nil
}

func (c *Client) getVideoDetails(ctx context.Context, courseID, lectureID, attachmentID int64) (*videoJSON, error) {
	var resp videoResponse
	endpoint := fmt.Sprintf("/courses/%d/lectures/%d/videos/%d", courseID, lectureID, attachmentID)
	if err := c.Get(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Video, nil
}
