package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"teachable-dl/internal/domain"
)

func sampleCourse() *domain.Course {
	return &domain.Course{
		ID:   42,
		Name: "Sample Course",
		Sections: []domain.Section{
			{
				ID: 200, Name: "Module Two", Position: 2,
				Lectures: []domain.Lecture{
					{
						ID: 21, Name: "Later", Position: 1,
						Attachments: []domain.Attachment{
							{ID: 4, Name: "slides.pdf", Kind: domain.KindPDFEmbed, Position: 1},
						},
					},
				},
			},
			{
				ID: 100, Name: "Module One", Position: 1,
				Lectures: []domain.Lecture{
					{
						ID: 11, Name: "Intro", Position: 1, IsPublished: true,
						Attachments: []domain.Attachment{
							{ID: 2, Name: "notes.pdf", Kind: domain.KindPDFEmbed, Position: 2},
							{ID: 1, Name: "intro.mp4", Kind: domain.KindVideo, Position: 1,
								URL: "https://cdn/intro.mp4", ThumbnailURL: "https://cdn/t.jpg", Duration: 120},
						},
					},
					{
						ID: 12, Name: "Setup", Position: 2,
						Attachments: []domain.Attachment{
							{ID: 3, Name: "setup.mp4", Kind: domain.KindVideo, Position: 1},
						},
					},
				},
			},
		},
	}
}

func TestBuildRowsOrdering(t *testing.T) {
	rows := BuildRows(sampleCourse())
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}

	wantIDs := []int64{1, 2, 3, 4}
	for i, want := range wantIDs {
		if rows[i].AttachmentID != want {
			t.Errorf("row %d attachment = %d, want %d", i, rows[i].AttachmentID, want)
		}
	}
	if rows[0].ModuleName != "Module One" || rows[3].ModuleName != "Module Two" {
		t.Error("module ordering wrong")
	}
	if rows[0].ThumbnailURL != "https://cdn/t.jpg" || rows[0].MediaDuration != 120 {
		t.Errorf("video metadata missing: %+v", rows[0])
	}
}

func TestWriteCourseCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "course_data.csv")
	if err := WriteCourseCSV(path, BuildRows(sampleCourse())); err != nil {
		t.Fatalf("WriteCourseCSV: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comma = ';'
	records, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	if len(records) != 5 {
		t.Fatalf("got %d records, want header + 4 rows", len(records))
	}
	if records[0][0] != "course_id" || records[0][15] != "media_duration" {
		t.Errorf("header = %v", records[0])
	}
	first := records[1]
	if first[10] != "1" || first[12] != "video" || first[15] != "120" {
		t.Errorf("first row = %v", first)
	}
}

func TestWriteCourseListCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all_courses_data.csv")
	courses := []domain.Course{
		{ID: 1, Name: "One", Heading: "First", IsPublished: true},
		{ID: 2, Name: "Two"},
	}
	if err := WriteCourseListCSV(path, courses); err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[1][1] != "One" || records[1][3] != "true" {
		t.Errorf("row = %v", records[1])
	}
}

func TestSaveQuizAttachment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.json")
	quiz := map[string]any{"question": "what?", "answers": []any{"a", "b"}}
	if err := SaveQuizAttachment(path, quiz); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["question"] != "what?" {
		t.Errorf("quiz = %v", got)
	}
}

func TestRenderFailureSummary(t *testing.T) {
	var buf bytes.Buffer
	RenderFailureSummary(&buf, []domain.FailureEntry{
		{
			AttachmentID: 5, CourseID: 1, CourseName: "Course A",
			SectionName: "Mod", LectureName: "Lec",
			Kind: domain.FailureNetwork, DirectURL: "https://cdn/a",
		},
		{
			AttachmentID: 6, CourseID: 2, CourseName: "Course B",
			Kind: domain.FailureSizeMismatch, ExpectedSize: 100, ActualSize: 40,
		},
	})

	out := buf.String()
	if !strings.Contains(out, "2 attachment(s) could not be downloaded") {
		t.Errorf("missing count line:\n%s", out)
	}
	if !strings.Contains(out, "Course 1 - Course A") || !strings.Contains(out, "Course 2 - Course B") {
		t.Errorf("missing course grouping:\n%s", out)
	}
	if !strings.Contains(out, "40/100") {
		t.Errorf("missing size detail:\n%s", out)
	}
}

func TestRenderFailureSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	RenderFailureSummary(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
