package teachable

// Wire types for the Teachable public API. Listing endpoints paginate via
// meta.number_of_pages; detail endpoints wrap their payload in a keyed object.

type pageMeta struct {
	Page          int `json:"page"`
	NumberOfPages int `json:"number_of_pages"`
	Total         int `json:"total"`
}

type courseJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Heading     string `json:"heading"`
	IsPublished bool   `json:"is_published"`
}

type coursesResponse struct {
	Courses []courseJSON `json:"courses"`
	Meta    pageMeta     `json:"meta"`
}

type courseDetailJSON struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	Heading         string        `json:"heading"`
	IsPublished     bool          `json:"is_published"`
	LectureSections []sectionJSON `json:"lecture_sections"`
}

type courseResponse struct {
	Course courseDetailJSON `json:"course"`
}

type sectionJSON struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Position int               `json:"position"`
	Lectures []lectureStubJSON `json:"lectures"`
}

type lectureStubJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type lectureJSON struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Position    int              `json:"position"`
	IsPublished bool             `json:"is_published"`
	Attachments []attachmentJSON `json:"attachments"`
}

type lectureResponse struct {
	Lecture lectureJSON `json:"lecture"`
}

type attachmentJSON struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	URL      string         `json:"url"`
	Position int            `json:"position"`
	Text     string         `json:"text"`
	Quiz     map[string]any `json:"quiz"`
}

type videoJSON struct {
	URLThumbnail  string `json:"url_thumbnail"`
	MediaDuration int64  `json:"media_duration"`
}

type videoResponse struct {
	Video videoJSON `json:"video"`
}
