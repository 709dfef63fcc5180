// Package paper normalizes the exam service's heterogeneous exam
// representations into a flat ordered question list.
package paper

import (
	"encoding/json"
	"fmt"

	"github.com/quizora/exam-agent/internal/model"
)

const defaultDurationMinutes = 60

// EmptyExamError reports an exam definition that yields zero questions.
// The message distinguishes "no paper data at all" from "paper data
// present but empty" because they indicate different upstream failures.
type EmptyExamError struct {
	HasPaperData bool
	SectionCount int
}

func (e *EmptyExamError) Error() string {
	if !e.HasPaperData {
		return "exam has no paper data; it may not have been created properly"
	}
	if e.SectionCount > 0 {
		return fmt.Sprintf("exam paper has %d section(s) but no questions in them", e.SectionCount)
	}
	return "exam paper data contains no sections or questions"
}

// rawQuestion mirrors a single question as the exam service ships it.
type rawQuestion struct {
	Question     string            `json:"question"`
	Type         string            `json:"type"`
	Options      map[string]string `json:"options"`
	Marks        int               `json:"marks"`
	SampleAnswer string            `json:"sample_answer"`
	Explanation  string            `json:"explanation"`
}

type rawSection struct {
	Title     string        `json:"title"`
	Questions []rawQuestion `json:"questions"`
}

type paperData struct {
	Title     string        `json:"title"`
	Duration  int           `json:"duration"`
	Questions []rawQuestion `json:"questions"`
	Sections  []rawSection  `json:"sections"`
}

type examDoc struct {
	ID        string        `json:"_id"`
	Title     string        `json:"title"`
	Duration  int           `json:"duration"`
	PaperData *paperData    `json:"paper_data"`
	Questions []rawQuestion `json:"questions"`
	Sections  []rawSection  `json:"sections"`
}

// envelope unwraps responses that nest the exam under an "exam" key.
type envelope struct {
	Exam json.RawMessage `json:"exam"`
}

// shape is one recognized question-container layout. extract returns nil
// when the layout does not match or yields no questions.
type shape struct {
	name    string
	extract func(d *examDoc) []model.Question
}

// shapes are tried in precedence order; the first non-empty match wins.
var shapes = []shape{
	{"paper_data.questions", func(d *examDoc) []model.Question {
		if d.PaperData == nil {
			return nil
		}
		return flatQuestions(d.PaperData.Questions)
	}},
	{"paper_data.sections", func(d *examDoc) []model.Question {
		if d.PaperData == nil {
			return nil
		}
		return sectionQuestions(d.PaperData.Sections)
	}},
	{"questions", func(d *examDoc) []model.Question {
		return flatQuestions(d.Questions)
	}},
	{"sections", func(d *examDoc) []model.Question {
		return sectionQuestions(d.Sections)
	}},
}

// Flatten normalizes a raw exam definition into an ExamPaper. examID is
// the identifier the definition was fetched under; it wins over any id
// embedded in the document.
func Flatten(examID string, raw json.RawMessage) (*model.ExamPaper, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode exam response: %w", err)
	}
	if len(env.Exam) > 0 {
		raw = env.Exam
	}

	var doc examDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode exam definition: %w", err)
	}

	var questions []model.Question
	for _, s := range shapes {
		if qs := s.extract(&doc); len(qs) > 0 {
			questions = qs
			break
		}
	}

	if len(questions) == 0 {
		sections := len(doc.Sections)
		if doc.PaperData != nil {
			sections = len(doc.PaperData.Sections)
		}
		return nil, &EmptyExamError{
			HasPaperData: doc.PaperData != nil,
			SectionCount: sections,
		}
	}

	title := doc.Title
	duration := doc.Duration
	if doc.PaperData != nil {
		if title == "" {
			title = doc.PaperData.Title
		}
		if duration == 0 {
			duration = doc.PaperData.Duration
		}
	}
	if duration <= 0 {
		duration = defaultDurationMinutes
	}

	return &model.ExamPaper{
		ExamID:          examID,
		Title:           title,
		DurationSeconds: duration * 60,
		Questions:       questions,
	}, nil
}

func flatQuestions(raws []rawQuestion) []model.Question {
	if len(raws) == 0 {
		return nil
	}
	out := make([]model.Question, 0, len(raws))
	for _, r := range raws {
		out = append(out, normalize(r, len(out), nil))
	}
	return out
}

// sectionQuestions concatenates questions across sections, preserving
// section order and question order within each section. Every question
// is tagged with its originating section for display grouping.
func sectionQuestions(sections []rawSection) []model.Question {
	var out []model.Question
	for si, sec := range sections {
		ref := &model.SectionRef{Index: si, Title: sec.Title}
		for _, r := range sec.Questions {
			out = append(out, normalize(r, len(out), ref))
		}
	}
	return out
}

func normalize(r rawQuestion, index int, section *model.SectionRef) model.Question {
	marks := r.Marks
	if marks < 1 {
		marks = 1
	}
	return model.Question{
		Index:        index,
		Type:         normalizeType(r.Type, r.Options),
		Prompt:       r.Question,
		Options:      r.Options,
		Marks:        marks,
		SampleAnswer: r.SampleAnswer,
		Explanation:  r.Explanation,
		Section:      section,
	}
}

// normalizeType maps the service's type strings onto the known kinds.
// A question only counts as multiple choice when it actually carries
// options; anything unrecognized is answered as free text.
func normalizeType(t string, options map[string]string) model.QuestionType {
	switch model.QuestionType(t) {
	case model.QuestionTypeMCQ:
		if len(options) > 0 {
			return model.QuestionTypeMCQ
		}
		return model.QuestionTypeShortAnswer
	case model.QuestionTypeShortAnswer:
		return model.QuestionTypeShortAnswer
	default:
		return model.QuestionTypeDescriptive
	}
}
