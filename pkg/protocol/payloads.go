package protocol

// ChatMessage is one {role, content} entry in an LLM request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMRequest is the request shape for SubjectLLMRequest.
type LLMRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// LLMReply is the reply shape for SubjectLLMRequest.
type LLMReply struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// OCRRequest is the request shape for SubjectOCRRequest. Exactly one of
// ImagePath or ImageBytesB64 should be set; an empty request asks the
// service to capture the screen.
type OCRRequest struct {
	ImagePath     string `json:"image_path,omitempty"`
	ImageBytesB64 string `json:"image_bytes_b64,omitempty"`
	Region        string `json:"region,omitempty"`
	Language      string `json:"language,omitempty"`
}

// OCRReply is the reply shape for SubjectOCRRequest.
type OCRReply struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence,omitempty"`
	Words      []string `json:"words,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// ImageGenRequest is the request shape for SubjectImageGenRequest.
type ImageGenRequest struct {
	Prompt            string  `json:"prompt"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	Seed              *int64  `json:"seed,omitempty"`
}

// ImageGenReply is the reply shape for SubjectImageGenRequest.
type ImageGenReply struct {
	ImagePath string `json:"image_path"`
	Prompt    string `json:"prompt"`
	Model     string `json:"model,omitempty"`
	Seed      *int64 `json:"seed,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Error     string `json:"error,omitempty"`
}

// MusicGenerateEvent is the publish payload for SubjectMusicGenerate.
type MusicGenerateEvent struct {
	Prompt         string `json:"prompt"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

// MusicResultEvent is delivered on ConversationSubject when generation
// completes.
type MusicResultEvent struct {
	Type     string `json:"type"`
	FilePath string `json:"file_path"`
	Prompt   string `json:"prompt,omitempty"`
}

// FileSearchRequest is the request shape for SubjectFileSearch.
type FileSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// FileSearchResult is one hit in a FileSearchReply.
type FileSearchResult struct {
	FilePath string  `json:"file_path"`
	Filename string  `json:"filename,omitempty"`
	Snippet  string  `json:"snippet,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// FileSearchReply is the reply shape for SubjectFileSearch.
type FileSearchReply struct {
	Results []FileSearchResult `json:"results"`
	Count   int                `json:"count"`
	Error   string             `json:"error,omitempty"`
}

// CommandEvent is the publish payload for SubjectCommandEvent.
type CommandEvent struct {
	EventType string `json:"event_type"`
	Command   string `json:"command"`
	Cwd       string `json:"cwd"`
	ExitCode  int    `json:"exit_code"`
	User      string `json:"user"`
}
