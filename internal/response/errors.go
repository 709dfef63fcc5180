package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Credential ────────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation   ErrCode = "VALIDATION_ERROR"
	ErrInvalidIndex ErrCode = "INVALID_QUESTION_INDEX"

	// ─── Session ───────────────────────────────────────────────────────
	ErrSessionActive    ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrNoSession        ErrCode = "NO_ACTIVE_SESSION"
	ErrSessionNotPaused ErrCode = "SESSION_NOT_PAUSED"
	ErrConfirmRequired  ErrCode = "CONFIRMATION_REQUIRED"

	// ─── Exam service ──────────────────────────────────────────────────
	ErrExamNotFound     ErrCode = "EXAM_NOT_FOUND"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"
	ErrAlreadySubmitted ErrCode = "ALREADY_SUBMITTED"
	ErrUpstream         ErrCode = "EXAM_SERVICE_UNAVAILABLE"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token was rejected."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidIndex:
		return "The question index is outside the loaded question list."
	case ErrSessionActive:
		return "An exam session is already in progress."
	case ErrNoSession:
		return "There is no active exam session."
	case ErrSessionNotPaused:
		return "The session is not paused."
	case ErrConfirmRequired:
		return "There are unanswered questions. Confirm to submit anyway."
	case ErrExamNotFound:
		return "The exam could not be found."
	case ErrNoQuestions:
		return "The exam contains no questions."
	case ErrAlreadySubmitted:
		return "This exam has already been submitted."
	case ErrUpstream:
		return "The exam service could not be reached. Please try again."
	case ErrInternal:
		return "An internal error occurred."
	default:
		return "An unexpected error occurred."
	}
}
