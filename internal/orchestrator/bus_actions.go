package orchestrator

import (
	"context"
	"fmt"

	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/pkg/protocol"
)

func (o *Orchestrator) executeLLMGenerate(ctx context.Context, action *convo.Action, session *convo.Session) *convo.ActionResult {
	prompt := action.ParamString("prompt")
	if prompt == "" {
		return convo.NewFailure(convo.ActionLLMGenerate, convo.ErrMissingParam, "Missing prompt parameter")
	}

	var messages []protocol.ChatMessage
	if sys := action.ParamString("system_prompt"); sys != "" {
		messages = append(messages, protocol.ChatMessage{Role: "system", Content: sys})
	}
	if action.ParamBool("use_history", false) {
		for _, m := range session.GetChatHistory(10) {
			messages = append(messages, protocol.ChatMessage{Role: m.Role, Content: m.Content})
		}
	}
	messages = append(messages, protocol.ChatMessage{Role: "user", Content: prompt})

	req := protocol.LLMRequest{
		Messages:    messages,
		Temperature: action.ParamFloat("temperature", 0.3),
		MaxTokens:   action.ParamInt("max_tokens", 256),
	}

	var reply protocol.LLMReply
	if err := o.Bus.Request(ctx, protocol.SubjectLLMRequest, req, llmTimeout, &reply); err != nil {
		return busFailure(convo.ActionLLMGenerate, err)
	}

	return convo.NewSuccess(convo.ActionLLMGenerate, map[string]any{
		"content": reply.Content,
		"prompt":  prompt,
	})
}

func (o *Orchestrator) executeImageGenerate(ctx context.Context, action *convo.Action, session *convo.Session) *convo.ActionResult {
	prompt := action.ParamString("prompt")
	if prompt == "" {
		return convo.NewFailure(convo.ActionImageGenerate, convo.ErrMissingParam, "Missing prompt parameter")
	}

	req := protocol.ImageGenRequest{
		Prompt:            prompt,
		Width:             action.ParamInt("width", 1024),
		Height:            action.ParamInt("height", 1024),
		NumInferenceSteps: action.ParamInt("steps", 4),
		GuidanceScale:     action.ParamFloat("guidance", 0.0),
	}

	var reply protocol.ImageGenReply
	if err := o.Bus.Request(ctx, protocol.SubjectImageGenRequest, req, imageGenTimeout, &reply); err != nil {
		return busFailure(convo.ActionImageGenerate, err)
	}

	return convo.NewSuccess(convo.ActionImageGenerate, map[string]any{
		"image_path": reply.ImagePath,
		"prompt":     prompt,
		"width":      req.Width,
		"height":     req.Height,
	})
}

// executeMusicGenerate publishes the generation request and returns
// immediately with a pending result. The final file path arrives
// asynchronously on the session's conversation subject; the Handler
// awaits it, not the Orchestrator.
func (o *Orchestrator) executeMusicGenerate(ctx context.Context, action *convo.Action, session *convo.Session) *convo.ActionResult {
	prompt := action.ParamString("prompt")
	if prompt == "" {
		return convo.NewFailure(convo.ActionMusicGenerate, convo.ErrMissingParam, "Missing prompt parameter")
	}

	event := protocol.MusicGenerateEvent{
		Prompt:         prompt,
		UserID:         session.UserID,
		ConversationID: session.SessionID,
	}
	if err := o.Bus.Publish(ctx, protocol.SubjectMusicGenerate, event); err != nil {
		return convo.NewFailure(convo.ActionMusicGenerate, convo.ErrRemoteError, fmt.Sprintf("Music generation failed: %v", err))
	}

	return convo.NewSuccess(convo.ActionMusicGenerate, map[string]any{
		"status": "pending",
		"prompt": prompt,
	})
}

func (o *Orchestrator) executeOCRCapture(ctx context.Context, action *convo.Action, session *convo.Session) *convo.ActionResult {
	req := protocol.OCRRequest{
		ImagePath: action.ParamString("image_path"),
		Region:    action.ParamString("region"),
		Language:  action.ParamString("language"),
	}

	var reply protocol.OCRReply
	if err := o.Bus.Request(ctx, protocol.SubjectOCRRequest, req, ocrTimeout, &reply); err != nil {
		return busFailure(convo.ActionOCRCapture, err)
	}

	return convo.NewSuccess(convo.ActionOCRCapture, map[string]any{
		"text": reply.Text,
	})
}

func (o *Orchestrator) executeDocumentQuery(ctx context.Context, action *convo.Action, session *convo.Session) *convo.ActionResult {
	query := action.ParamString("query")
	if query == "" {
		query = action.ParamString("search")
	}
	if query == "" {
		return convo.NewFailure(convo.ActionDocumentQuery, convo.ErrMissingParam, "Missing query parameter")
	}
	limit := action.ParamInt("limit", 10)

	var reply protocol.FileSearchReply
	if err := o.Bus.Request(ctx, protocol.SubjectFileSearch, protocol.FileSearchRequest{Query: query, Limit: limit}, docQueryTimeout, &reply); err != nil {
		return busFailure(convo.ActionDocumentQuery, err)
	}

	results := make([]map[string]any, 0, len(reply.Results))
	for _, r := range reply.Results {
		results = append(results, map[string]any{
			"file_path": r.FilePath,
			"filename":  r.Filename,
			"snippet":   r.Snippet,
			"score":     r.Score,
		})
	}

	return convo.NewSuccess(convo.ActionDocumentQuery, map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func (o *Orchestrator) executeSystemCommand(ctx context.Context, action *convo.Action, session *convo.Session) *convo.ActionResult {
	name := action.ParamString("action")
	if name == "" {
		return convo.NewFailure(convo.ActionSystemCommand, convo.ErrMissingParam, "Missing action name for system command")
	}
	payload, _ := action.Params["payload"].(map[string]any)
	if payload == nil {
		payload = map[string]any{}
	}

	var reply map[string]any
	if err := o.Bus.Request(ctx, protocol.SubjectSystemActionPrefix+name, payload, sysCmdTimeout, &reply); err != nil {
		return busFailure(convo.ActionSystemCommand, err)
	}

	return convo.NewSuccess(convo.ActionSystemCommand, reply)
}
