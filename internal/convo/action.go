package convo

// ActionKind is the closed set of action types the Orchestrator knows
// how to dispatch. Implementers must support all ten; the Orchestrator
// fails fast on anything else (ErrUnknownActionKind).
type ActionKind string

const (
	ActionLLMGenerate    ActionKind = "llm_generate"
	ActionImageGenerate  ActionKind = "image_generate"
	ActionImageSave      ActionKind = "image_save"
	ActionMusicGenerate  ActionKind = "music_generate"
	ActionMusicSave      ActionKind = "music_save"
	ActionOCRCapture     ActionKind = "ocr_capture"
	ActionDocumentQuery  ActionKind = "document_query"
	ActionWebSearch      ActionKind = "web_search"
	ActionCommandExecute ActionKind = "command_execute"
	ActionSystemCommand  ActionKind = "system_command"
)

// AllActionKinds enumerates the closed set, in the order the original
// planner's system prompt presents them.
var AllActionKinds = []ActionKind{
	ActionLLMGenerate,
	ActionImageGenerate,
	ActionMusicGenerate,
	ActionMusicSave,
	ActionImageSave,
	ActionOCRCapture,
	ActionDocumentQuery,
	ActionWebSearch,
	ActionCommandExecute,
	ActionSystemCommand,
}

// ActionStatus tracks an Action through a single plan/execute cycle. Not
// persisted across process restart.
type ActionStatus string

const (
	StatusPending   ActionStatus = "pending"
	StatusApproved  ActionStatus = "approved"
	StatusExecuting ActionStatus = "executing"
	StatusCompleted ActionStatus = "completed"
	StatusFailed    ActionStatus = "failed"
	StatusCancelled ActionStatus = "cancelled"
)

// Action is one planned unit of work. Created by the Planner, consumed
// by the Orchestrator.
type Action struct {
	Kind          ActionKind     `json:"action_type"`
	Params        map[string]any `json:"params"`
	Status        ActionStatus   `json:"status"`
	NeedsApproval bool           `json:"needs_approval"`
	Description   string         `json:"description"`
	Result        *ActionResult  `json:"result,omitempty"`
}

// ParamString fetches a string parameter, returning "" if absent or of
// the wrong type.
func (a *Action) ParamString(key string) string {
	if a.Params == nil {
		return ""
	}
	if v, ok := a.Params[key].(string); ok {
		return v
	}
	return ""
}

// ParamInt fetches a numeric parameter as an int, returning def if
// absent or of the wrong type. JSON numbers decode as float64.
func (a *Action) ParamInt(key string, def int) int {
	if a.Params == nil {
		return def
	}
	switch v := a.Params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// ParamFloat fetches a numeric parameter as a float64, returning def if
// absent or of the wrong type.
func (a *Action) ParamFloat(key string, def float64) float64 {
	if a.Params == nil {
		return def
	}
	switch v := a.Params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// ParamBool fetches a boolean parameter, returning def if absent or of
// the wrong type.
func (a *Action) ParamBool(key string, def bool) bool {
	if a.Params == nil {
		return def
	}
	if v, ok := a.Params[key].(bool); ok {
		return v
	}
	return def
}

// ActionResult is produced by the Orchestrator per executed action.
type ActionResult struct {
	Kind      ActionKind     `json:"action_type"`
	Timestamp int64          `json:"timestamp"`
	Success   bool           `json:"success"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorKind ErrorKind      `json:"error_kind,omitempty"`
}

// NewSuccess builds a successful ActionResult for kind with the given
// details.
func NewSuccess(kind ActionKind, details map[string]any) *ActionResult {
	if details == nil {
		details = map[string]any{}
	}
	return &ActionResult{Kind: kind, Timestamp: NowMillis(), Success: true, Details: details}
}

// NewFailure builds a failed ActionResult carrying the taxonomy kind
// and message.
func NewFailure(kind ActionKind, errKind ErrorKind, msg string) *ActionResult {
	return &ActionResult{Kind: kind, Timestamp: NowMillis(), Success: false, Error: msg, ErrorKind: errKind}
}
