package llmcall

import (
	"github.com/jackzampolin/itihasa/internal/providers"
)

// Recorder handles fire-and-forget LLM call recording via a Sink.
// A nil Recorder or one without a sink records nothing.
type Recorder struct {
	sink *Sink
}

// NewRecorder creates a new LLM call recorder.
func NewRecorder(sink *Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record captures an LLM call asynchronously.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	if r == nil || r.sink == nil {
		return
	}
	r.sink.Send(FromChatResult(result, opts))
}

// RecordCall captures an already-constructed Call asynchronously.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || r.sink == nil || call == nil {
		return
	}
	r.sink.Send(call)
}
