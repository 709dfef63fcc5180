package model

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeMCQ         QuestionType = "mcq"
	QuestionTypeShortAnswer QuestionType = "short_answer"
	QuestionTypeDescriptive QuestionType = "descriptive"
)

// SectionRef points back at the section a question was flattened out of.
// Display grouping only; the flat question order is authoritative.
type SectionRef struct {
	Index int    `json:"index"`
	Title string `json:"title"`
}

// Question is one entry of the flattened question list. Immutable once loaded.
type Question struct {
	Index        int               `json:"index"`
	Type         QuestionType      `json:"type"`
	Prompt       string            `json:"question"`
	Options      map[string]string `json:"options,omitempty"`
	Marks        int               `json:"marks"`
	SampleAnswer string            `json:"sample_answer,omitempty"`
	Explanation  string            `json:"explanation,omitempty"`
	Section      *SectionRef       `json:"section,omitempty"`
}

// ExamPaper is the normalized exam definition produced by the session loader.
type ExamPaper struct {
	ExamID          string     `json:"exam_id"`
	Title           string     `json:"title"`
	DurationSeconds int        `json:"duration_seconds"`
	Questions       []Question `json:"questions"`
}
