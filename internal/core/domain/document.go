package domain

import "time"

// Notice types as stored in fragment and document metadata.
const (
	CategoryUniversityNotice = "대학공지"
	CategoryDepartmentNotice = "학과공지"
	CategoryCourse           = "교과목/수강"
)

// Date sentinels used by ingestion for documents without a meaningful date.
const (
	DateAlways  = "상시"
	DateUnknown = "날짜미상"
)

// Document is the full parent record a fragment was split from.
type Document struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Body            string   `json:"body"`
	Date            string   `json:"date"`
	URL             string   `json:"url"`
	Category        string   `json:"category"`
	Department      string   `json:"department,omitempty"`
	CourseID        string   `json:"course_id,omitempty"`
	OriginalID      string   `json:"original_id,omitempty"`
	HasAttachment   bool     `json:"has_attachment"`
	AttachmentNames []string `json:"attachment_names,omitempty"`

	// SubmittedAt is set when the notice enters the indexing queue.
	SubmittedAt time.Time `json:"submitted_at,omitzero"`
}

// Metadata returns the payload stored next to every fragment of the document.
func (d Document) Metadata() map[string]any {
	return map[string]any{
		"doc_id":         d.ID,
		"title":          d.Title,
		"date":           d.Date,
		"url":            d.URL,
		"notice_type":    d.Category,
		"department":     d.Department,
		"course_id":      d.CourseID,
		"original_id":    d.OriginalID,
		"has_attachment": d.HasAttachment,
	}
}

// DeadLetter is a notice that failed indexing and waits for a replay.
type DeadLetter struct {
	Key      string    `json:"key"`
	Document Document  `json:"document"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}
