package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quizora/exam-agent/internal/examapi"
	"github.com/quizora/exam-agent/internal/middleware"
	"github.com/quizora/exam-agent/internal/model"
	"github.com/quizora/exam-agent/internal/paper"
	"github.com/quizora/exam-agent/internal/response"
	"github.com/quizora/exam-agent/internal/session"
	"github.com/quizora/exam-agent/internal/validator"
)

// SessionHandler exposes the exam session controller over the local
// bridge API consumed by the browser UI.
type SessionHandler struct {
	ctrl *session.Controller
	log  zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(ctrl *session.Controller, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		ctrl: ctrl,
		log:  log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSessionRequest is the payload for starting an exam session.
type StartSessionRequest struct {
	ExamID string `json:"exam_id" binding:"required,min=1"`
}

// AnswerRequest is the payload for recording one answer. An empty value
// is legal: it still counts the question as answered, same as typing and
// deleting text in the UI would not.
type AnswerRequest struct {
	Value string `json:"value"`
}

// SubmitRequest is the payload for a manual submission.
type SubmitRequest struct {
	Confirmed bool `json:"confirmed"`
}

// Start godoc
// POST /api/v1/session/start
// Loads the exam definition and activates the single session.
func (h *SessionHandler) Start(c *gin.Context) {
	token := middleware.GetToken(c)
	if token == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	// Credential pre-flight: reject an expired or missing token before
	// any network round trip.
	if err := examapi.CheckCredential(token); err != nil {
		h.failStart(c, err)
		return
	}

	p, err := h.ctrl.Start(c.Request.Context(), req.ExamID, token)
	if err != nil {
		h.failStart(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"paper":   p,
		"session": h.ctrl.Snapshot(),
	})
}

func (h *SessionHandler) failStart(c *gin.Context, err error) {
	var emptyErr *paper.EmptyExamError
	switch {
	case errors.Is(err, session.ErrSessionActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionActive)
	case errors.Is(err, examapi.ErrCredentialMissing):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
	case errors.Is(err, examapi.ErrCredentialExpired):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenExpired)
	case errors.Is(err, examapi.ErrUnauthorized):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
	case errors.Is(err, examapi.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.As(err, &emptyErr):
		// Surface the specific diagnostic: "no paper data" and "paper
		// data but zero questions" point at different upstream failures.
		response.FailWithMessage(c, http.StatusUnprocessableEntity, response.ErrNoQuestions, emptyErr.Error())
	case examapi.IsRecoverable(err):
		response.Fail(c, http.StatusBadGateway, response.ErrUpstream)
	default:
		h.log.Error().Err(err).Msg("Session start failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// GetState godoc
// GET /api/v1/session
// Returns the session snapshot so a reloaded UI can pick up where it was.
func (h *SessionHandler) GetState(c *gin.Context) {
	snap := h.ctrl.Snapshot()
	if snap.Status == model.SessionStatusNone {
		response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

// GetPaper godoc
// GET /api/v1/session/paper
// Returns the flattened question list of the loaded exam.
func (h *SessionHandler) GetPaper(c *gin.Context) {
	p := h.ctrl.Paper()
	if p == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": p})
}

// PutAnswer godoc
// PUT /api/v1/session/answers/:index
// Records an answer, overwriting any prior value for that question.
func (h *SessionHandler) PutAnswer(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidIndex)
		return
	}

	p := h.ctrl.Paper()
	if p == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		return
	}
	if index < 0 || index >= len(p.Questions) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidIndex)
		return
	}

	var req AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.ctrl.SetAnswer(index, req.Value); err != nil {
		response.Fail(c, http.StatusConflict, response.ErrNoSession)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"answered_count":   h.ctrl.AnsweredCount(),
		"unanswered_count": h.ctrl.UnansweredCount(),
	})
}

// Submit godoc
// POST /api/v1/session/submit
// Manual submission. Without confirmed=true the request is refused while
// unanswered questions remain, naming the count.
func (h *SessionHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	result, err := h.ctrl.RequestSubmission(c.Request.Context(), session.ReasonManual, req.Confirmed)
	if err != nil {
		var confirmErr *session.ConfirmationRequiredError
		switch {
		case errors.As(err, &confirmErr):
			response.FailWithMessage(c, http.StatusConflict, response.ErrConfirmRequired,
				fmt.Sprintf("You have %d unanswered question(s). Confirm to submit anyway.", confirmErr.Unanswered))
		case errors.Is(err, session.ErrNoActiveSession):
			response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		case errors.Is(err, examapi.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		case errors.Is(err, examapi.ErrUnauthorized), errors.Is(err, examapi.ErrCredentialExpired):
			response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		case examapi.IsRecoverable(err):
			// The controller rolled the session back; retrying this
			// endpoint is the user-visible retry path.
			response.Fail(c, http.StatusBadGateway, response.ErrUpstream)
		default:
			h.log.Error().Err(err).Msg("Submission failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"result":  result,
		"session": h.ctrl.Snapshot(),
	})
}

// Resume godoc
// POST /api/v1/session/resume
// Re-arms the timer and integrity monitor after a failed submission.
func (h *SessionHandler) Resume(c *gin.Context) {
	if err := h.ctrl.Resume(); err != nil {
		switch {
		case errors.Is(err, session.ErrNoActiveSession):
			response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		case errors.Is(err, session.ErrNotPaused):
			response.Fail(c, http.StatusConflict, response.ErrSessionNotPaused)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": h.ctrl.Snapshot()})
}

// Abandon godoc
// DELETE /api/v1/session
// Tears the session down without submitting.
func (h *SessionHandler) Abandon(c *gin.Context) {
	if err := h.ctrl.Abandon(); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "abandoned"})
}
