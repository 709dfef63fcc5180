// Package session implements the exam session core: one Controller per
// attempt owning the state machine, countdown timer, answer store,
// integrity monitor and submission pipeline. Adapters (the HTTP/WS
// bridge, the terminal client) translate platform events into method
// calls and notices back into platform output.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizora/exam-agent/internal/examapi"
	"github.com/quizora/exam-agent/internal/model"
	"github.com/quizora/exam-agent/internal/paper"
)

// ExamService is the exam-service collaborator surface the controller
// needs: definition fetch and scoring submission.
type ExamService interface {
	GetExam(ctx context.Context, examID, token string) (json.RawMessage, error)
	Submit(ctx context.Context, record *model.SubmissionRecord, token string) (*model.ExamResult, error)
}

// SubmitReason records what triggered a submission.
type SubmitReason string

const (
	ReasonManual     SubmitReason = "manual"
	ReasonTimeout    SubmitReason = "timeout"
	ReasonViolations SubmitReason = "violations"
)

var (
	// ErrSessionActive rejects a second StartExam while one attempt runs.
	ErrSessionActive = errors.New("an exam session is already active")
	// ErrNoActiveSession means the requested operation needs a live session.
	ErrNoActiveSession = errors.New("no active exam session")
	// ErrNotPaused means Resume was called but the session is armed.
	ErrNotPaused = errors.New("session is not paused")
)

// ConfirmationRequiredError asks the user to confirm a manual submission
// that would leave questions unanswered.
type ConfirmationRequiredError struct {
	Unanswered int
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("submission needs confirmation: %d unanswered question(s)", e.Unanswered)
}

// Options are the per-controller policy knobs.
type Options struct {
	// WarningMarks are remaining-seconds values for one-shot timer warnings.
	WarningMarks []int
	// TabSwitchLimit is the hard violation ceiling (defaults to 3).
	TabSwitchLimit int
	// AutoSubmitGrace delays forced submission so the notice can render
	// first. Zero or negative submits synchronously.
	AutoSubmitGrace time.Duration
	// ResumeOnSubmitFailure re-arms the timer and monitor automatically
	// after a rolled-back submission instead of waiting for Resume.
	ResumeOnSubmitFailure bool
}

// Controller owns all state for one exam attempt. All fields behind mu;
// handlers re-check state after every network call since the session can
// move underneath an in-flight request.
type Controller struct {
	opts     Options
	api      ExamService
	notifier Notifier
	log      zerolog.Logger

	mu        sync.Mutex
	attemptID uuid.UUID
	examID    string
	token     string
	paper     *model.ExamPaper
	status    model.SessionStatus
	startedAt time.Time
	timer     *countdown
	answers   *answerStore
	monitor   *integrityMonitor
	submitted bool
	armed     bool
	result    *model.ExamResult
	stopTick  context.CancelFunc
	grace     *time.Timer

	nowFn func() time.Time
}

// New creates a Controller. notifier may be nil when the caller only
// consumes return values.
func New(api ExamService, notifier Notifier, opts Options, log zerolog.Logger) *Controller {
	if opts.TabSwitchLimit <= 0 {
		opts.TabSwitchLimit = 3
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notice) {})
	}
	return &Controller{
		opts:     opts,
		api:      api,
		notifier: notifier,
		log:      log.With().Str("component", "session").Logger(),
		nowFn:    time.Now,
	}
}

// Start loads the exam definition, normalizes it and activates the
// session: timer armed, integrity monitoring installed, counters zeroed.
// Global state is not touched until the full session validates. A second
// Start while a session is loading or active is rejected.
func (c *Controller) Start(ctx context.Context, examID, token string) (*model.ExamPaper, error) {
	c.mu.Lock()
	switch c.status {
	case model.SessionStatusLoading, model.SessionStatusActive, model.SessionStatusSubmitting:
		c.mu.Unlock()
		return nil, ErrSessionActive
	}
	c.status = model.SessionStatusLoading
	c.mu.Unlock()

	raw, err := c.api.GetExam(ctx, examID, token)
	if err != nil {
		c.failLoad()
		return nil, fmt.Errorf("load exam: %w", err)
	}

	p, err := paper.Flatten(examID, raw)
	if err != nil {
		c.failLoad()
		return nil, err
	}

	c.mu.Lock()
	if c.status != model.SessionStatusLoading {
		// Abandoned while the fetch was in flight.
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	c.attemptID = uuid.New()
	c.examID = examID
	c.token = token
	c.paper = p
	c.answers = newAnswerStore(len(p.Questions))
	c.monitor = newIntegrityMonitor(c.opts.TabSwitchLimit)
	c.timer = newCountdown(p.DurationSeconds, c.opts.WarningMarks)
	c.startedAt = c.nowFn()
	c.submitted = false
	c.result = nil
	c.status = model.SessionStatusActive
	c.armLocked()
	c.mu.Unlock()

	c.log.Info().
		Str("attempt_id", c.attemptID.String()).
		Str("exam_id", examID).
		Int("questions", len(p.Questions)).
		Int("duration_seconds", p.DurationSeconds).
		Msg("Exam session started")
	return p, nil
}

func (c *Controller) failLoad() {
	c.mu.Lock()
	if c.status == model.SessionStatusLoading {
		c.status = model.SessionStatusFailed
	}
	c.mu.Unlock()
}

// SetAnswer records the student's answer for one question, overwriting
// any prior value. The index must be within the loaded question list;
// adapters validate user input before calling.
func (c *Controller) SetAnswer(index int, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != model.SessionStatusActive {
		return ErrNoActiveSession
	}
	c.answers.set(index, value)
	return nil
}

// Answer returns the stored answer for a question, if any.
func (c *Controller) Answer(index int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.answers == nil {
		return "", false
	}
	return c.answers.get(index)
}

// AnsweredCount returns how many questions have a recorded answer.
func (c *Controller) AnsweredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.answers == nil {
		return 0
	}
	return c.answers.answered()
}

// UnansweredCount returns how many questions have no recorded answer.
func (c *Controller) UnansweredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.answers == nil {
		return 0
	}
	return c.answers.unanswered()
}

// Paper returns the loaded exam paper, or nil when no session exists.
func (c *Controller) Paper() *model.ExamPaper {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paper
}

// Status returns the current session state.
func (c *Controller) Status() model.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// HandleEvent feeds one platform event to the integrity monitor and
// returns the adapter verdict. Events arriving while the monitor is not
// installed (session inactive or paused) are ignored entirely.
func (c *Controller) HandleEvent(ev IntegrityEvent) Verdict {
	c.mu.Lock()
	if c.status != model.SessionStatusActive || !c.armed {
		c.mu.Unlock()
		return Verdict{}
	}

	if ev.Type == EventWindowBlur || ev.Type == EventWindowFocus {
		c.mu.Unlock()
		c.log.Debug().Str("event", string(ev.Type)).Msg("Window focus change observed")
		return Verdict{}
	}

	v := c.monitor.observe(ev)

	var notices []Notice
	if v.Warning != "" {
		kind := NoticeViolation
		if !v.Counted {
			kind = NoticeBlocked
		}
		notices = append(notices, Notice{Kind: kind, Message: v.Warning})
	}
	if v.ForceSubmit {
		notices = append(notices, Notice{
			Kind:    NoticeAutoSubmit,
			Message: "Too many tab switches! The exam will be submitted automatically.",
		})
		if c.opts.AutoSubmitGrace > 0 {
			c.scheduleGraceLocked(ReasonViolations)
		}
	}
	c.mu.Unlock()

	for _, n := range notices {
		c.notifier.Notify(n)
	}
	if v.ForceSubmit && c.opts.AutoSubmitGrace <= 0 {
		_, _ = c.RequestSubmission(context.Background(), ReasonViolations, true)
	}
	return v
}

// IntegrityLog returns the current violation counters.
func (c *Controller) IntegrityLog() model.IntegrityLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.monitor == nil {
		return model.IntegrityLog{}
	}
	return c.monitor.snapshot()
}

// RequestSubmission is the single serialized entry point for every
// submission trigger: the student, the timer and the integrity monitor.
// A call after the record has been sent is a silent no-op, so racing
// triggers cannot cause a double submission. Manual submissions with
// unanswered questions return ConfirmationRequiredError until confirmed.
//
// On success the session completes and the scored result is returned.
// On failure the submitted flag rolls back and the session returns to
// Active with its answers intact; whether the timer and monitor re-arm
// automatically is governed by Options.ResumeOnSubmitFailure.
func (c *Controller) RequestSubmission(ctx context.Context, reason SubmitReason, confirmed bool) (*model.ExamResult, error) {
	auto := reason != ReasonManual

	c.mu.Lock()
	if c.submitted {
		result := c.result
		c.mu.Unlock()
		return result, nil
	}
	if c.status != model.SessionStatusActive {
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if !auto && !confirmed {
		if un := c.answers.unanswered(); un > 0 {
			c.mu.Unlock()
			return nil, &ConfirmationRequiredError{Unanswered: un}
		}
	}

	c.submitted = true
	c.status = model.SessionStatusSubmitting
	c.disarmLocked()

	record := &model.SubmissionRecord{
		ExamID:         c.examID,
		Answers:        c.answers.snapshot(),
		TimeTaken:      int(c.nowFn().Sub(c.startedAt) / time.Second),
		AutoSubmitted:  auto,
		SecurityEvents: c.monitor.snapshot(),
	}
	token := c.token
	c.mu.Unlock()

	c.log.Info().
		Str("reason", string(reason)).
		Int("answered", len(record.Answers)).
		Int("time_taken", record.TimeTaken).
		Msg("Submitting exam")

	result, err := c.api.Submit(ctx, record, token)

	c.mu.Lock()
	if c.status != model.SessionStatusSubmitting {
		// Abandoned while the request was in flight; nothing to update.
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if err != nil {
		if errors.Is(err, examapi.ErrAlreadySubmitted) {
			// The service already holds a submission for this attempt;
			// arguing with it would only lose the student's session.
			c.status = model.SessionStatusCompleted
			c.mu.Unlock()
			c.notifier.Notify(Notice{Kind: NoticeSubmitted, Message: "Exam was already submitted."})
			return nil, err
		}

		c.submitted = false
		c.status = model.SessionStatusActive
		resumed := c.opts.ResumeOnSubmitFailure
		if resumed {
			c.armLocked()
		}
		c.mu.Unlock()

		c.log.Error().Err(err).Msg("Submission failed, session rolled back to active")
		msg := "Failed to submit exam: " + err.Error()
		if !resumed {
			msg += " — timer paused, resume to continue"
		}
		c.notifier.Notify(Notice{Kind: NoticeSubmitFailed, Message: msg})
		return nil, err
	}

	c.result = result
	c.status = model.SessionStatusCompleted
	c.mu.Unlock()

	c.log.Info().
		Float64("score", result.Score).
		Float64("percentage", result.Percentage).
		Bool("auto_submitted", auto).
		Msg("Exam completed")
	c.notifier.Notify(Notice{Kind: NoticeSubmitted, Message: "Exam submitted successfully!", Result: result})
	return result, nil
}

// Resume re-arms the timer and integrity monitor after a failed
// submission left the session paused.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != model.SessionStatusActive {
		return ErrNoActiveSession
	}
	if c.armed {
		return ErrNotPaused
	}
	c.armLocked()
	c.log.Info().Msg("Session resumed")
	return nil
}

// Abandon tears the session down without submitting: the timer callback
// is withdrawn, integrity listeners are removed and all state cleared.
func (c *Controller) Abandon() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == model.SessionStatusNone {
		return ErrNoActiveSession
	}
	c.disarmLocked()
	c.attemptID = uuid.Nil
	c.examID = ""
	c.token = ""
	c.paper = nil
	c.timer = nil
	c.answers = nil
	c.monitor = nil
	c.submitted = false
	c.result = nil
	c.status = model.SessionStatusNone
	c.log.Info().Msg("Session abandoned")
	return nil
}

// Snapshot is the controller state as exposed to adapters.
type Snapshot struct {
	AttemptID        string              `json:"attempt_id,omitempty"`
	ExamID           string              `json:"exam_id,omitempty"`
	Title            string              `json:"title,omitempty"`
	Status           model.SessionStatus `json:"status"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	TotalQuestions   int                 `json:"total_questions"`
	AnsweredCount    int                 `json:"answered_count"`
	UnansweredCount  int                 `json:"unanswered_count"`
	Armed            bool                `json:"armed"`
	Answers          map[int]string      `json:"answers,omitempty"`
	Integrity        model.IntegrityLog  `json:"integrity"`
	Result           *model.ExamResult   `json:"result,omitempty"`
}

// Snapshot returns a point-in-time copy of session state, e.g. for a UI
// reconnecting after a page reload.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{Status: c.status, Armed: c.armed, Result: c.result}
	if c.attemptID != uuid.Nil {
		snap.AttemptID = c.attemptID.String()
	}
	if c.paper != nil {
		snap.ExamID = c.paper.ExamID
		snap.Title = c.paper.Title
		snap.TotalQuestions = len(c.paper.Questions)
	}
	if c.timer != nil {
		snap.RemainingSeconds = c.timer.remaining
	}
	if c.answers != nil {
		snap.AnsweredCount = c.answers.answered()
		snap.UnansweredCount = c.answers.unanswered()
		snap.Answers = c.answers.snapshot()
	}
	if c.monitor != nil {
		snap.Integrity = c.monitor.snapshot()
	}
	return snap
}

// ─── Timer plumbing ─────────────────────────────────────────────────

// armLocked installs the recurring tick and marks integrity monitoring
// live. Caller holds mu.
func (c *Controller) armLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	c.stopTick = cancel
	c.armed = true
	go c.runTimer(ctx)
}

// disarmLocked withdraws the tick callback and any pending forced
// submission. Caller holds mu. Installing and removing always happen
// together so no listener outlives the session.
func (c *Controller) disarmLocked() {
	if c.stopTick != nil {
		c.stopTick()
		c.stopTick = nil
	}
	if c.grace != nil {
		c.grace.Stop()
		c.grace = nil
	}
	c.armed = false
}

// scheduleGraceLocked (re)schedules the delayed forced submission,
// stopping any earlier pending one so a single firing is outstanding.
// Caller holds mu.
func (c *Controller) scheduleGraceLocked(reason SubmitReason) {
	if c.grace != nil {
		c.grace.Stop()
	}
	c.grace = time.AfterFunc(c.opts.AutoSubmitGrace, func() {
		_, _ = c.RequestSubmission(context.Background(), reason, true)
	})
}

func (c *Controller) runTimer(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.handleTick() {
				return
			}
		}
	}
}

// handleTick advances the countdown by one second and reports whether
// ticking should continue. Exposed to the run loop only; tests drive it
// directly instead of sleeping.
func (c *Controller) handleTick() bool {
	c.mu.Lock()
	if c.status != model.SessionStatusActive || !c.armed || c.timer == nil {
		c.mu.Unlock()
		return false
	}

	alreadyExpired := c.timer.remaining <= 0
	res := c.timer.tick()
	expired := res.expired && !alreadyExpired

	var notices []Notice
	for _, m := range res.warnings {
		notices = append(notices, Notice{
			Kind:      NoticeTimeWarning,
			Message:   formatMark(m),
			Remaining: res.remaining,
		})
	}
	if expired {
		// The session stays armed through the grace window so late
		// violations are still observed; RequestSubmission disarms.
		notices = append(notices, Notice{
			Kind:    NoticeTimeUp,
			Message: "Time is up! The exam will be submitted automatically.",
		})
		if c.opts.AutoSubmitGrace > 0 {
			c.scheduleGraceLocked(ReasonTimeout)
		}
	}
	c.mu.Unlock()

	for _, n := range notices {
		c.notifier.Notify(n)
	}
	if expired && c.opts.AutoSubmitGrace <= 0 {
		_, _ = c.RequestSubmission(context.Background(), ReasonTimeout, true)
	}
	return !res.expired
}
