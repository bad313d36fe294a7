package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionNavigate  Action = "navigate"
	ActionFrame     Action = "frame"
	ActionFocus     Action = "focus"
	ActionSaveDraft Action = "save_draft"
	ActionSubmit    Action = "submit"
	ActionLeave     Action = "leave"
	ActionPing      Action = "ping"
)

// RequestEnvelope carries every client action. Fields are read
// depending on the action.
type RequestEnvelope struct {
	Action Action `json:"action"`

	// answer
	QuestionIndex int      `json:"question_index"`
	Value         []string `json:"value"`

	// navigate: +1 next, -1 previous
	Delta int `json:"delta"`

	// frame: raw RGBA pixels, base64-encoded by the JSON codec
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Pixels []byte `json:"pixels,omitempty"`

	// focus
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSaved     Event = "saved"
	EventNavigated Event = "navigated"
	EventStatus    Event = "status"
	EventTime      Event = "time"
	EventWarning   Event = "warning"
	EventSubmitted Event = "submitted"
	EventPong      Event = "pong"
)

// SavedResponse acknowledges an answer or draft save.
type SavedResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// NavigatedResponse reports the question index after a navigation.
type NavigatedResponse struct {
	Event         Event `json:"event"`
	QuestionIndex int   `json:"question_index"`
}

// PushEvent wraps a server-initiated session update. Exactly one of
// the payload fields is set, matching the event.
type PushEvent struct {
	Event   Event       `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
