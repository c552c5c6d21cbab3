package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"teachable-dl/internal/domain"
)

// RenderFailureSummary prints the run's permanently failed attachments,
// grouped by course, with enough context to finish each download by hand.
func RenderFailureSummary(w io.Writer, entries []domain.FailureEntry) {
	if len(entries) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%d attachment(s) could not be downloaded:\n", len(entries))

	var currentCourse int64 = -1
	var t table.Writer
	flush := func() {
		if t != nil {
			t.Render()
		}
	}

	for _, entry := range entries {
		if entry.CourseID != currentCourse {
			flush()
			currentCourse = entry.CourseID
			fmt.Fprintf(w, "\nCourse %d - %s\n", entry.CourseID, entry.CourseName)

			t = table.NewWriter()
			t.SetOutputMirror(w)
			t.AppendHeader(table.Row{"Attachment", "Lecture", "Failure", "Size", "URL", "Admin"})
		}

		size := ""
		if entry.ExpectedSize > 0 {
			size = fmt.Sprintf("%d/%d", entry.ActualSize, entry.ExpectedSize)
		}
		t.AppendRow(table.Row{
			entry.AttachmentID,
			fmt.Sprintf("%s / %s", entry.SectionName, entry.LectureName),
			string(entry.Kind),
			size,
			truncate(entry.DirectURL, 60),
			entry.AdminURL,
		})
	}
	flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
