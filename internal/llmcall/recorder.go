package llmcall

import (
	"github.com/jackzampolin/radreport/internal/providers"
)

// Recorder writes LLM calls to a Store. A nil Recorder, or one without a
// store, discards everything.
type Recorder struct {
	store *Store
}

// NewRecorder creates a new LLM call recorder.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// Record captures an LLM call and returns its ID ("" when discarded).
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) string {
	if r == nil || r.store == nil {
		return ""
	}

	call := FromChatResult(result, opts)
	if call == nil {
		return ""
	}
	r.store.Add(*call)
	return call.ID
}

// RecordCall captures an already-constructed Call.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || r.store == nil || call == nil {
		return
	}
	r.store.Add(*call)
}
