package model

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	// SessionStatusNone means no session exists in this agent.
	SessionStatusNone       SessionStatus = ""
	SessionStatusLoading    SessionStatus = "LOADING"
	SessionStatusActive     SessionStatus = "ACTIVE"
	SessionStatusSubmitting SessionStatus = "SUBMITTING"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusFailed     SessionStatus = "FAILED"
)
