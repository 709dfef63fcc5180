package model

// IntegrityLog counts monitored violations for the lifetime of one session.
// Counters only ever increase; a new session starts from zero.
type IntegrityLog struct {
	TabSwitches        int `json:"tab_switches"`
	CopyAttempts       int `json:"copy_attempts"`
	PasteAttempts      int `json:"paste_attempts"`
	RightClickAttempts int `json:"right_click_attempts"`
}

// SubmissionRecord is the payload sent to the scoring endpoint.
// Built and transmitted at most once per session.
type SubmissionRecord struct {
	ExamID         string         `json:"exam_id"`
	Answers        map[int]string `json:"answers"`
	TimeTaken      int            `json:"time_taken"`
	AutoSubmitted  bool           `json:"auto_submitted"`
	SecurityEvents IntegrityLog   `json:"security_events"`
}

// ExamResult is the scored result returned by the exam service.
type ExamResult struct {
	Message        string  `json:"message,omitempty"`
	Score          float64 `json:"score"`
	TotalMarks     float64 `json:"total_marks"`
	Percentage     float64 `json:"percentage"`
	CorrectAnswers int     `json:"correct_answers"`
	TimeTaken      int     `json:"time_taken"`
}
