package session

import "github.com/quizora/exam-agent/internal/model"

// NoticeKind classifies a user-visible notification from the controller.
type NoticeKind string

const (
	NoticeTimeWarning  NoticeKind = "time_warning"
	NoticeTimeUp       NoticeKind = "time_up"
	NoticeViolation    NoticeKind = "violation"
	NoticeBlocked      NoticeKind = "blocked"
	NoticeAutoSubmit   NoticeKind = "auto_submit"
	NoticeSubmitted    NoticeKind = "submitted"
	NoticeSubmitFailed NoticeKind = "submit_failed"
)

// Notice is a user-visible notification. All notices are dismissible;
// none is fatal to the agent process.
type Notice struct {
	Kind      NoticeKind        `json:"kind"`
	Message   string            `json:"message"`
	Remaining int               `json:"remaining,omitempty"`
	Result    *model.ExamResult `json:"result,omitempty"`
}

// Notifier receives controller notices. Implementations must not call
// back into the Controller from Notify.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }
