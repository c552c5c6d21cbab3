package domain

// AttachmentKind identifies what a lecture attachment holds.
type AttachmentKind string

const (
	KindVideo       AttachmentKind = "video"
	KindPDFEmbed    AttachmentKind = "pdf_embed"
	KindFile        AttachmentKind = "file"
	KindImage       AttachmentKind = "image"
	KindAudio       AttachmentKind = "audio"
	KindText        AttachmentKind = "text"
	KindCodeEmbed   AttachmentKind = "code_embed"
	KindCodeDisplay AttachmentKind = "code_display"
	KindQuiz        AttachmentKind = "quiz"
)

// Course is the root of the content tree. The name may change between runs;
// directory rename detection happens outside the download core.
type Course struct {
	ID          int64
	Name        string
	Heading     string
	IsPublished bool
	Sections    []Section
}

// Section groups lectures. Position defines ordering only, not identity.
type Section struct {
	ID       int64
	Name     string
	Position int
	Lectures []Lecture
}

// Lecture belongs to exactly one section.
type Lecture struct {
	ID          int64
	Name        string
	Position    int
	SectionID   int64
	IsPublished bool
	Attachments []Attachment
}

// Attachment is a single downloadable artifact. The attachment id is
// globally unique on the platform and is the sole duplicate-download key.
type Attachment struct {
	ID           int64
	Name         string
	Kind         AttachmentKind
	URL          string
	Position     int
	Text         string
	Quiz         map[string]any
	ThumbnailURL string
	Duration     int64
}
