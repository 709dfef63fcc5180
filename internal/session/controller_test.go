package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizora/exam-agent/internal/examapi"
	"github.com/quizora/exam-agent/internal/model"
)

// fakeExamService stubs the collaborator with per-call hooks.
type fakeExamService struct {
	mu          sync.Mutex
	getExamFn   func(examID string) (json.RawMessage, error)
	submitFn    func(record *model.SubmissionRecord) (*model.ExamResult, error)
	submitCalls int
	lastRecord  *model.SubmissionRecord
}

func (f *fakeExamService) GetExam(_ context.Context, examID, _ string) (json.RawMessage, error) {
	return f.getExamFn(examID)
}

func (f *fakeExamService) Submit(_ context.Context, record *model.SubmissionRecord, _ string) (*model.ExamResult, error) {
	f.mu.Lock()
	f.submitCalls++
	f.lastRecord = record
	fn := f.submitFn
	f.mu.Unlock()
	return fn(record)
}

func (f *fakeExamService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}

func (f *fakeExamService) record() *model.SubmissionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRecord
}

// recorder collects notices for assertions.
type recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *recorder) kinds() []NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NoticeKind, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Kind
	}
	return out
}

func (r *recorder) has(kind NoticeKind) bool {
	for _, k := range r.kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

const threeQuestionExam = `{"title":"Sample","duration":10,"questions":[
	{"question":"q1","type":"mcq","options":{"a":"1","b":"2"}},
	{"question":"q2","type":"short_answer"},
	{"question":"q3"}
]}`

func okResult() *model.ExamResult {
	return &model.ExamResult{Score: 2, TotalMarks: 3, Percentage: 66.7, CorrectAnswers: 2, TimeTaken: 120}
}

func newTestController(t *testing.T, api *fakeExamService, rec *recorder, opts Options) *Controller {
	t.Helper()
	if api.getExamFn == nil {
		api.getExamFn = func(string) (json.RawMessage, error) {
			return json.RawMessage(threeQuestionExam), nil
		}
	}
	if api.submitFn == nil {
		api.submitFn = func(*model.SubmissionRecord) (*model.ExamResult, error) {
			return okResult(), nil
		}
	}
	var notifier Notifier
	if rec != nil {
		notifier = rec
	}
	return New(api, notifier, opts, zerolog.Nop())
}

// startSession starts and then detaches the background ticker so tests
// can drive time deterministically through handleTick.
func startSession(t *testing.T, ctrl *Controller) *model.ExamPaper {
	t.Helper()
	p, err := ctrl.Start(context.Background(), "exam-1", "tok")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	stopTicker(ctrl)
	return p
}

func stopTicker(ctrl *Controller) {
	ctrl.mu.Lock()
	if ctrl.stopTick != nil {
		ctrl.stopTick()
		ctrl.stopTick = nil
	}
	ctrl.mu.Unlock()
}

func TestStartActivatesSession(t *testing.T) {
	api := &fakeExamService{}
	ctrl := newTestController(t, api, nil, Options{})

	p := startSession(t, ctrl)

	if len(p.Questions) != 3 {
		t.Fatalf("questions = %d, want 3", len(p.Questions))
	}
	if got := ctrl.Status(); got != model.SessionStatusActive {
		t.Errorf("Status() = %q, want ACTIVE", got)
	}

	snap := ctrl.Snapshot()
	if snap.RemainingSeconds != 600 {
		t.Errorf("RemainingSeconds = %d, want 600", snap.RemainingSeconds)
	}
	if snap.AttemptID == "" {
		t.Error("snapshot has no attempt id")
	}
	if !snap.Armed {
		t.Error("session not armed after start")
	}
}

func TestStartRejectsSecondSession(t *testing.T) {
	ctrl := newTestController(t, &fakeExamService{}, nil, Options{})
	startSession(t, ctrl)

	if _, err := ctrl.Start(context.Background(), "exam-2", "tok"); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second Start() error = %v, want ErrSessionActive", err)
	}
}

func TestStartFailureLeavesFailedState(t *testing.T) {
	api := &fakeExamService{
		getExamFn: func(string) (json.RawMessage, error) {
			return nil, examapi.ErrExamNotFound
		},
	}
	ctrl := newTestController(t, api, nil, Options{})

	_, err := ctrl.Start(context.Background(), "missing", "tok")
	if !errors.Is(err, examapi.ErrExamNotFound) {
		t.Fatalf("Start() error = %v, want ErrExamNotFound", err)
	}
	if got := ctrl.Status(); got != model.SessionStatusFailed {
		t.Errorf("Status() = %q, want FAILED", got)
	}

	// A failed load does not block a fresh start.
	if _, err := ctrl.Start(context.Background(), "exam-1", "tok"); err != nil {
		t.Errorf("restart after failure: %v", err)
	}
	stopTicker(ctrl)
}

func TestSetAnswerOverwrites(t *testing.T) {
	ctrl := newTestController(t, &fakeExamService{}, nil, Options{})
	startSession(t, ctrl)

	if err := ctrl.SetAnswer(0, "a"); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.SetAnswer(0, "b"); err != nil {
		t.Fatal(err)
	}

	if v, _ := ctrl.Answer(0); v != "b" {
		t.Errorf("Answer(0) = %q, want b", v)
	}
	if ctrl.AnsweredCount() != 1 || ctrl.UnansweredCount() != 2 {
		t.Errorf("counts = %d/%d, want 1/2", ctrl.AnsweredCount(), ctrl.UnansweredCount())
	}
}

func TestManualSubmitNeedsConfirmation(t *testing.T) {
	api := &fakeExamService{}
	ctrl := newTestController(t, api, nil, Options{})
	startSession(t, ctrl)
	ctrl.SetAnswer(0, "a")

	_, err := ctrl.RequestSubmission(context.Background(), ReasonManual, false)
	var confirmErr *ConfirmationRequiredError
	if !errors.As(err, &confirmErr) {
		t.Fatalf("error = %v, want ConfirmationRequiredError", err)
	}
	if confirmErr.Unanswered != 2 {
		t.Errorf("Unanswered = %d, want 2", confirmErr.Unanswered)
	}
	if api.calls() != 0 {
		t.Error("submission was sent without confirmation")
	}
	if got := ctrl.Status(); got != model.SessionStatusActive {
		t.Errorf("Status() = %q after refused submit, want ACTIVE", got)
	}

	// Confirmed retry goes through.
	if _, err := ctrl.RequestSubmission(context.Background(), ReasonManual, true); err != nil {
		t.Fatalf("confirmed submit: %v", err)
	}
	if got := ctrl.Status(); got != model.SessionStatusCompleted {
		t.Errorf("Status() = %q, want COMPLETED", got)
	}
}

func TestSubmitRecordContents(t *testing.T) {
	api := &fakeExamService{}
	rec := &recorder{}
	ctrl := newTestController(t, api, rec, Options{})

	base := time.Now()
	ctrl.nowFn = func() time.Time { return base }
	startSession(t, ctrl)

	ctrl.SetAnswer(0, "a")
	ctrl.SetAnswer(2, "essay text")
	ctrl.HandleEvent(IntegrityEvent{Type: EventTabSwitch})
	ctrl.HandleEvent(IntegrityEvent{Type: EventCopy})

	ctrl.nowFn = func() time.Time { return base.Add(95 * time.Second) }
	result, err := ctrl.RequestSubmission(context.Background(), ReasonManual, true)
	if err != nil {
		t.Fatalf("RequestSubmission() error = %v", err)
	}
	if result.Score != 2 {
		t.Errorf("Score = %v, want 2", result.Score)
	}

	record := api.record()
	if record.ExamID != "exam-1" {
		t.Errorf("ExamID = %q", record.ExamID)
	}
	if record.AutoSubmitted {
		t.Error("manual submission marked auto_submitted")
	}
	if record.TimeTaken != 95 {
		t.Errorf("TimeTaken = %d, want 95", record.TimeTaken)
	}
	if len(record.Answers) != 2 || record.Answers[0] != "a" || record.Answers[2] != "essay text" {
		t.Errorf("Answers = %v", record.Answers)
	}
	if record.SecurityEvents.TabSwitches != 1 || record.SecurityEvents.CopyAttempts != 1 {
		t.Errorf("SecurityEvents = %+v", record.SecurityEvents)
	}
	if !rec.has(NoticeSubmitted) {
		t.Errorf("notices = %v, want submitted", rec.kinds())
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	api := &fakeExamService{}
	ctrl := newTestController(t, api, nil, Options{})
	startSession(t, ctrl)

	first, err := ctrl.RequestSubmission(context.Background(), ReasonTimeout, true)
	if err != nil {
		t.Fatal(err)
	}
	// Racing triggers land after the record went out: silent no-op with
	// the cached result.
	second, err := ctrl.RequestSubmission(context.Background(), ReasonViolations, true)
	if err != nil {
		t.Fatalf("second RequestSubmission() error = %v", err)
	}
	if second != first {
		t.Error("second call did not return the cached result")
	}
	if api.calls() != 1 {
		t.Errorf("Submit called %d times, want 1", api.calls())
	}
}

func TestSubmitFailureRollsBack(t *testing.T) {
	api := &fakeExamService{
		submitFn: func(*model.SubmissionRecord) (*model.ExamResult, error) {
			return nil, &examapi.StatusError{StatusCode: 500, Message: "boom"}
		},
	}
	rec := &recorder{}
	ctrl := newTestController(t, api, rec, Options{})
	startSession(t, ctrl)
	ctrl.SetAnswer(1, "kept")

	_, err := ctrl.RequestSubmission(context.Background(), ReasonManual, true)
	if err == nil {
		t.Fatal("expected submit error")
	}

	if got := ctrl.Status(); got != model.SessionStatusActive {
		t.Errorf("Status() = %q after failure, want ACTIVE", got)
	}
	if v, _ := ctrl.Answer(1); v != "kept" {
		t.Error("answers lost on rollback")
	}
	if !rec.has(NoticeSubmitFailed) {
		t.Errorf("notices = %v, want submit_failed", rec.kinds())
	}
	// Default policy: paused until an explicit resume.
	if snap := ctrl.Snapshot(); snap.Armed {
		t.Error("session re-armed without resume")
	}
	if err := ctrl.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	stopTicker(ctrl)
	if err := ctrl.Resume(); !errors.Is(err, ErrNotPaused) {
		t.Errorf("second Resume() error = %v, want ErrNotPaused", err)
	}

	// Retry succeeds now that the service recovered.
	api.mu.Lock()
	api.submitFn = func(*model.SubmissionRecord) (*model.ExamResult, error) { return okResult(), nil }
	api.mu.Unlock()
	if _, err := ctrl.RequestSubmission(context.Background(), ReasonManual, true); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
	if api.calls() != 2 {
		t.Errorf("Submit called %d times, want 2", api.calls())
	}
}

func TestSubmitFailureAutoResumePolicy(t *testing.T) {
	api := &fakeExamService{
		submitFn: func(*model.SubmissionRecord) (*model.ExamResult, error) {
			return nil, &examapi.NetworkError{Op: "submission", Err: errors.New("refused")}
		},
	}
	ctrl := newTestController(t, api, nil, Options{ResumeOnSubmitFailure: true})
	startSession(t, ctrl)

	if _, err := ctrl.RequestSubmission(context.Background(), ReasonManual, true); err == nil {
		t.Fatal("expected submit error")
	}
	snap := ctrl.Snapshot()
	stopTicker(ctrl)
	if !snap.Armed {
		t.Error("session not re-armed with ResumeOnSubmitFailure")
	}
}

func TestSubmitAlreadySubmittedCompletes(t *testing.T) {
	api := &fakeExamService{
		submitFn: func(*model.SubmissionRecord) (*model.ExamResult, error) {
			return nil, examapi.ErrAlreadySubmitted
		},
	}
	ctrl := newTestController(t, api, nil, Options{})
	startSession(t, ctrl)

	_, err := ctrl.RequestSubmission(context.Background(), ReasonManual, true)
	if !errors.Is(err, examapi.ErrAlreadySubmitted) {
		t.Fatalf("error = %v, want ErrAlreadySubmitted", err)
	}
	if got := ctrl.Status(); got != model.SessionStatusCompleted {
		t.Errorf("Status() = %q, want COMPLETED", got)
	}
}

func TestTabSwitchCeilingForcesSubmission(t *testing.T) {
	api := &fakeExamService{}
	rec := &recorder{}
	// Zero grace submits synchronously, keeping the test deterministic.
	ctrl := newTestController(t, api, rec, Options{TabSwitchLimit: 3, AutoSubmitGrace: 0})
	startSession(t, ctrl)

	ctrl.HandleEvent(IntegrityEvent{Type: EventTabSwitch})
	ctrl.HandleEvent(IntegrityEvent{Type: EventTabSwitch})
	v := ctrl.HandleEvent(IntegrityEvent{Type: EventTabSwitch})

	if !v.ForceSubmit {
		t.Fatal("third tab switch verdict lacks ForceSubmit")
	}
	if got := ctrl.Status(); got != model.SessionStatusCompleted {
		t.Fatalf("Status() = %q, want COMPLETED", got)
	}
	record := api.record()
	if !record.AutoSubmitted {
		t.Error("forced submission not marked auto_submitted")
	}
	if record.SecurityEvents.TabSwitches != 3 {
		t.Errorf("TabSwitches = %d, want 3", record.SecurityEvents.TabSwitches)
	}
	if !rec.has(NoticeAutoSubmit) {
		t.Errorf("notices = %v, want auto_submit", rec.kinds())
	}
}

func TestEventsIgnoredOutsideActiveSession(t *testing.T) {
	ctrl := newTestController(t, &fakeExamService{}, nil, Options{})

	if v := ctrl.HandleEvent(IntegrityEvent{Type: EventTabSwitch}); v != (Verdict{}) {
		t.Errorf("verdict before start = %+v, want zero", v)
	}

	startSession(t, ctrl)
	if _, err := ctrl.RequestSubmission(context.Background(), ReasonManual, true); err != nil {
		t.Fatal(err)
	}
	if v := ctrl.HandleEvent(IntegrityEvent{Type: EventCopy}); v != (Verdict{}) {
		t.Errorf("verdict after completion = %+v, want zero", v)
	}
	if ctrl.IntegrityLog().CopyAttempts != 0 {
		t.Error("event counted after completion")
	}
}

func TestBlurAndFocusNeverCounted(t *testing.T) {
	rec := &recorder{}
	ctrl := newTestController(t, &fakeExamService{}, rec, Options{})
	startSession(t, ctrl)

	ctrl.HandleEvent(IntegrityEvent{Type: EventWindowBlur})
	ctrl.HandleEvent(IntegrityEvent{Type: EventWindowFocus})

	if log := ctrl.IntegrityLog(); log != (model.IntegrityLog{}) {
		t.Errorf("IntegrityLog = %+v, want all zero", log)
	}
	if len(rec.kinds()) != 0 {
		t.Errorf("notices = %v, want none", rec.kinds())
	}
}

func TestTimerWarningsAndTimeout(t *testing.T) {
	api := &fakeExamService{
		getExamFn: func(string) (json.RawMessage, error) {
			// 1 minute = 60 ticks, short enough to drive by hand.
			return json.RawMessage(`{"title":"t","duration":1,"questions":[{"question":"q"}]}`), nil
		},
	}
	rec := &recorder{}
	ctrl := newTestController(t, api, rec, Options{WarningMarks: []int{30}, AutoSubmitGrace: 0})

	base := time.Now()
	ctrl.nowFn = func() time.Time { return base }
	startSession(t, ctrl)

	ctrl.nowFn = func() time.Time { return base.Add(60 * time.Second) }
	for i := 0; i < 60; i++ {
		ctrl.handleTick()
	}

	if got := ctrl.Status(); got != model.SessionStatusCompleted {
		t.Fatalf("Status() = %q after expiry, want COMPLETED", got)
	}

	kinds := rec.kinds()
	warnings := 0
	for _, k := range kinds {
		if k == NoticeTimeWarning {
			warnings++
		}
	}
	if warnings != 1 {
		t.Errorf("time warnings = %d, want exactly 1 (mark 30)", warnings)
	}
	if !rec.has(NoticeTimeUp) {
		t.Errorf("notices = %v, want time_up", kinds)
	}

	record := api.record()
	if !record.AutoSubmitted {
		t.Error("timeout submission not marked auto_submitted")
	}
	if record.TimeTaken != 60 {
		t.Errorf("TimeTaken = %d, want 60", record.TimeTaken)
	}
}

func TestAbandonClearsEverything(t *testing.T) {
	ctrl := newTestController(t, &fakeExamService{}, nil, Options{})
	startSession(t, ctrl)
	ctrl.SetAnswer(0, "a")

	if err := ctrl.Abandon(); err != nil {
		t.Fatalf("Abandon() error = %v", err)
	}
	snap := ctrl.Snapshot()
	if snap.Status != model.SessionStatusNone || snap.TotalQuestions != 0 || snap.Armed {
		t.Errorf("snapshot after abandon = %+v", snap)
	}
	if err := ctrl.Abandon(); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("second Abandon() error = %v, want ErrNoActiveSession", err)
	}

	// The slate is clean for a fresh attempt.
	if _, err := ctrl.Start(context.Background(), "exam-1", "tok"); err != nil {
		t.Errorf("Start() after abandon: %v", err)
	}
	stopTicker(ctrl)
}

func TestSubmitWithoutSessionFails(t *testing.T) {
	ctrl := newTestController(t, &fakeExamService{}, nil, Options{})
	if _, err := ctrl.RequestSubmission(context.Background(), ReasonManual, true); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("error = %v, want ErrNoActiveSession", err)
	}
}

const oneQuestionMinuteExam = `{"title":"t","duration":1,"questions":[{"question":"q"}]}`

func TestEventsCountedDuringTimeoutGrace(t *testing.T) {
	api := &fakeExamService{
		getExamFn: func(string) (json.RawMessage, error) {
			return json.RawMessage(oneQuestionMinuteExam), nil
		},
	}
	// A grace long enough that the forced submission never fires here;
	// the test ends the window by submitting explicitly.
	ctrl := newTestController(t, api, nil, Options{AutoSubmitGrace: time.Hour})
	startSession(t, ctrl)

	for i := 0; i < 60; i++ {
		ctrl.handleTick()
	}
	if got := ctrl.Status(); got != model.SessionStatusActive {
		t.Fatalf("Status() = %q during grace window, want ACTIVE", got)
	}

	// The monitor is still live between expiry and the actual submission.
	v := ctrl.HandleEvent(IntegrityEvent{Type: EventCopy})
	if !v.Counted || !v.Suppress {
		t.Fatalf("copy during grace window: verdict = %+v, want counted and suppressed", v)
	}

	if _, err := ctrl.RequestSubmission(context.Background(), ReasonTimeout, true); err != nil {
		t.Fatal(err)
	}
	if got := api.record().SecurityEvents.CopyAttempts; got != 1 {
		t.Errorf("submitted CopyAttempts = %d, want the grace-window violation", got)
	}
}

func TestGraceTimerReplacedNotLeaked(t *testing.T) {
	api := &fakeExamService{
		getExamFn: func(string) (json.RawMessage, error) {
			return json.RawMessage(oneQuestionMinuteExam), nil
		},
	}
	ctrl := newTestController(t, api, nil, Options{TabSwitchLimit: 1, AutoSubmitGrace: time.Hour})
	startSession(t, ctrl)

	for i := 0; i < 60; i++ {
		ctrl.handleTick()
	}
	ctrl.mu.Lock()
	first := ctrl.grace
	ctrl.mu.Unlock()
	if first == nil {
		t.Fatal("no grace timer scheduled on expiry")
	}

	// The ceiling trips inside the timeout grace window and schedules
	// its own forced submission.
	if v := ctrl.HandleEvent(IntegrityEvent{Type: EventTabSwitch}); !v.ForceSubmit {
		t.Fatal("ceiling did not escalate during the grace window")
	}

	ctrl.mu.Lock()
	second := ctrl.grace
	ctrl.mu.Unlock()
	if second == first {
		t.Fatal("grace timer was not replaced")
	}
	if first.Stop() {
		t.Error("superseded grace timer was still pending")
	}

	if err := ctrl.Abandon(); err != nil {
		t.Fatal(err)
	}
}
