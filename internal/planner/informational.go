package planner

import (
	"strings"

	"github.com/neuralux/convoengine/internal/convo"
)

var conversationalWords = []string{
	"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
	"thanks", "thank you", "bye", "goodbye", "how are you", "what's up",
	"greetings", "howdy", "bonjour", "hola", "ciao", "salut",
}

var informationalStarters = []string{
	"what", "who", "when", "where", "why", "how",
	"explain", "tell me", "summarize", "summary of",
	"define", "describe", "compare", "difference between",
	"translate", "meaning of", "calculate", "compute",
	"can you", "could you", "would you", "please",
}

var imperativeKeywords = []string{
	"open", "create", "write", "save", "move", "delete",
	"list files", "search files", "run", "execute", "install",
	"generate", "generate image", "generate music", "generate song",
	"song", "music",
	"ocr", "web search",
}

// isInformationalQuery detects pure Q&A / conversational turns that
// should bypass the planner LLM entirely.
func isInformationalQuery(lowerInput string) bool {
	if strings.Contains(lowerInput, "?") {
		return true
	}
	for _, w := range conversationalWords {
		if strings.Contains(lowerInput, w) {
			return true
		}
	}
	for _, s := range informationalStarters {
		if strings.HasPrefix(lowerInput, s) {
			return true
		}
	}
	for _, k := range imperativeKeywords {
		if strings.Contains(lowerInput, k) {
			return false
		}
	}
	if len(strings.Fields(lowerInput)) >= 3 {
		for _, w := range []string{"info", "information", "overview", "guide"} {
			if strings.Contains(lowerInput, w) {
				return true
			}
		}
	}
	return false
}

// informationalFastPath plans a single non-approval llm_generate action
// for conversational/informational input.
func (p *Planner) informationalFastPath(userInput string) ([]*convo.Action, string) {
	params := map[string]any{
		"prompt":      userInput,
		"use_history": true,
		"system_prompt": "You are a friendly and helpful AI assistant. " +
			"Respond naturally and conversationally. " +
			"For greetings, be warm and welcoming. " +
			"For questions, answer directly, accurately, and concisely. " +
			"Be personable and helpful. Keep responses brief but complete.",
		"temperature": 0.7,
		"max_tokens":  300,
	}
	action := &convo.Action{
		Kind:          convo.ActionLLMGenerate,
		Params:        params,
		Description:   "Respond to user",
		NeedsApproval: false,
		Status:        convo.StatusPending,
	}
	return []*convo.Action{action}, "Responding to your message"
}
