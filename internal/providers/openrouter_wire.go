package providers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// chatBody builds the chat completions payload. Options are applied last as
// sjson paths, so they may set nested keys like "response_format.type".
func chatBody(model string, req *ChatRequest) ([]byte, error) {
	messages := make([]map[string]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}

	fields := []struct {
		path  string
		value any
		set   bool
	}{
		{"model", model, true},
		{"messages", messages, true},
		{"temperature", req.Temperature, req.Temperature != nil},
		{"max_tokens", req.MaxTokens, req.MaxTokens > 0},
	}

	body := []byte(`{}`)
	var err error
	for _, f := range fields {
		if !f.set {
			continue
		}
		if body, err = sjson.SetBytes(body, f.path, f.value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", f.path, err)
		}
	}
	for key, value := range req.Options {
		if body, err = sjson.SetBytes(body, key, value); err != nil {
			return nil, fmt.Errorf("failed to set option %q: %w", key, err)
		}
	}
	return body, nil
}

// chatReply is the part of a chat completions response the client reads.
type chatReply struct {
	ID               string
	Model            string
	Content          string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

var errMalformedReply = errors.New("malformed chat response")

// apiError is an error object returned in a 200 response body.
type apiError struct {
	Message string
	Code    string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("OpenRouter API error (%s): %s", e.Code, e.Message)
	}
	return "OpenRouter API error: " + e.Message
}

// parseChatReply reads the first choice of a chat completions response.
func parseChatReply(body []byte) (*chatReply, error) {
	if !gjson.ValidBytes(body) {
		return nil, errMalformedReply
	}
	doc := gjson.ParseBytes(body)

	if e := doc.Get("error"); e.Exists() {
		return nil, &apiError{Message: e.Get("message").String(), Code: e.Get("code").String()}
	}

	reply := &chatReply{
		ID:               doc.Get("id").String(),
		Model:            doc.Get("model").String(),
		PromptTokens:     int(doc.Get("usage.prompt_tokens").Int()),
		CompletionTokens: int(doc.Get("usage.completion_tokens").Int()),
		TotalTokens:      int(doc.Get("usage.total_tokens").Int()),
	}

	choice := doc.Get("choices.0")
	if !choice.Exists() {
		return reply, fmt.Errorf("%s (model=%s, id=%s): %w", OpenRouterName, reply.Model, reply.ID, ErrEmptyResponse)
	}
	reply.Content = messageText(choice.Get("message.content"))
	reply.FinishReason = choice.Get("finish_reason").String()
	return reply, nil
}

// messageText returns the assistant content. It is usually a string; an
// array of parts is joined from its text parts.
func messageText(content gjson.Result) string {
	switch {
	case !content.Exists(), content.Type == gjson.Null:
		return ""
	case content.Type == gjson.String:
		return content.Str
	case content.IsArray():
		var sb strings.Builder
		for _, part := range content.Array() {
			if part.Get("type").String() == "text" {
				sb.WriteString(part.Get("text").String())
			}
		}
		return sb.String()
	default:
		return content.Raw
	}
}
