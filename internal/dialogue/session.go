package dialogue

import (
	"github.com/jackzampolin/radreport/internal/matcher"
)

// Exchange is one request/response pair of a dialogue.
type Exchange struct {
	Stage     string `json:"stage"`
	PromptKey string `json:"prompt_key"`
	System    string `json:"system"`
	Reply     string `json:"reply"`
	CallID    string `json:"call_id,omitempty"`
}

// Session is the state of a single dialogue attempt. A failed attempt's
// session is discarded; the next attempt starts fresh.
type Session struct {
	ID      string
	Attempt uint
	Report  string

	Exchanges         []Exchange
	MainFinding       string
	RequestedTemplate string
	Resolution        matcher.Resolution
}

func newSession(id string, attempt uint, report string) *Session {
	return &Session{
		ID:      id,
		Attempt: attempt,
		Report:  report,
	}
}
