package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect   Action = "select"
	ActionPrev     Action = "prev"
	ActionNext     Action = "next"
	ActionGoTo     Action = "goto"
	ActionSubmit   Action = "submit"
	ActionRestart  Action = "restart"
	ActionAutoNext Action = "auto_next"
	ActionPing     Action = "ping"
)

// ActionRequest carries every action; fields unused by an action are
// ignored.
type ActionRequest struct {
	Action    Action `json:"action"`
	ItemIndex *int   `json:"item_index,omitempty"` // select
	OptionID  string `json:"option_id,omitempty"`  // select
	Index     *int   `json:"index,omitempty"`      // goto
	Enabled   *bool  `json:"enabled,omitempty"`    // auto_next
}

// ─── Events (Server → Client) ───────────────────────────────────────
//
// Session changes are pushed as quiz.Event values ("state", "tick",
// "finalized", "closed"). The events below are connection-level.

type Event string

const (
	EventError Event = "error"
	EventPong  Event = "pong"
)

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
