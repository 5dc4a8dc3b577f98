package llmcall

// Trace summarises the model calls of one dialogue session.
// A retried dialogue shows every attempt, failed calls included.
type Trace struct {
	SessionID string `json:"session_id"`
	// Attempts is the highest attempt number seen.
	Attempts int `json:"attempts"`
	// Failed counts calls that returned an error.
	Failed int `json:"failed"`
	// ByStage counts calls per dialogue stage.
	ByStage map[string]int `json:"by_stage"`
	// ByPromptKey counts calls per prompt key.
	ByPromptKey map[string]int `json:"by_prompt_key"`
	// TokensIn and TokensOut total the token usage of all calls.
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`
	Calls     []Call `json:"calls"`
}

func newTrace(sessionID string, calls []Call) *Trace {
	t := &Trace{
		SessionID:   sessionID,
		ByStage:     make(map[string]int),
		ByPromptKey: make(map[string]int),
		Calls:       calls,
	}
	for _, c := range calls {
		t.Attempts = max(t.Attempts, c.Attempt)
		if !c.Success {
			t.Failed++
		}
		if c.Stage != "" {
			t.ByStage[c.Stage]++
		}
		t.ByPromptKey[c.PromptKey]++
		t.TokensIn += c.InputTokens
		t.TokensOut += c.OutputTokens
	}
	return t
}
