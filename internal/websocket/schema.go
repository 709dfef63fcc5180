package websocket

// ─── Actions (Browser UI → Agent) ───────────────────────────────────

type Action string

const (
	// ActionEvent reports a DOM-level event for the integrity monitor.
	ActionEvent Action = "event"
	// ActionAnswer autosaves a single answer.
	ActionAnswer Action = "answer"
	// ActionPing keeps the stream alive.
	ActionPing Action = "ping"
)

// RequestPayload is the single inbound message shape; which fields are
// meaningful depends on Action.
type RequestPayload struct {
	Action Action `json:"action"`

	// ActionEvent fields.
	EventType string `json:"type,omitempty"`
	Key       string `json:"key,omitempty"`
	Ctrl      bool   `json:"ctrl,omitempty"`
	Shift     bool   `json:"shift,omitempty"`
	Alt       bool   `json:"alt,omitempty"`

	// ActionAnswer fields.
	QuestionIndex *int   `json:"question_index,omitempty"`
	Answer        string `json:"answer,omitempty"`
}

// ─── Events (Agent → Browser UI) ────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventVerdict Event = "verdict"
	EventSaved   Event = "saved"
	EventNotice  Event = "notice"
	EventPong    Event = "pong"
)

// VerdictResponse answers an ActionEvent report: whether the adapter
// must suppress the underlying action, plus any warning to render.
type VerdictResponse struct {
	Event       Event  `json:"event"`
	Suppress    bool   `json:"suppress"`
	Counted     bool   `json:"counted"`
	Count       int    `json:"count,omitempty"`
	Warning     string `json:"warning,omitempty"`
	ForceSubmit bool   `json:"force_submit,omitempty"`
}

// SavedResponse acknowledges an autosaved answer.
type SavedResponse struct {
	Event         Event `json:"event"`
	QuestionIndex int   `json:"question_index"`
	Answered      int   `json:"answered"`
}

// NoticeResponse pushes a controller notice to the UI.
type NoticeResponse struct {
	Event  Event       `json:"event"`
	Notice interface{} `json:"notice"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
