// Package streaming implements spec.md §4.8: the per-request streaming
// state machine. A streaming request suspends at every upstream read but
// logically runs as one cooperative task that accumulates the full
// provider response while forwarding translated chunks to the client.
// Grounded on the teacher's relay/controller/response_io.go
// responseCaptureWriter (capture-while-forwarding) and
// relay/controller/claude_messages.go's validate -> resolve -> translate ->
// call -> translate -> persist pipeline shape, generalized here into an
// explicit state machine per spec.md §9 ("streaming as a state machine,
// not callbacks").
package streaming

import (
	"sync"
	"time"

	"github.com/laiskygw/llm-gateway/relay/ir"
)

// State is one node of the spec.md §4.8 state machine:
// Idle -> Connecting -> FirstChunk -> Streaming -> {Completed|Aborted|Failed}.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateFirstChunk State = "first_chunk"
	StateStreaming  State = "streaming"
	StateCompleted  State = "completed"
	StateAborted    State = "aborted"
	StateFailed     State = "failed"
)

// toolCallAccum collects one tool call's streamed argument fragments,
// keyed by id rather than stream index (spec.md §9 "Tool-call
// reconstruction"); index only maps to id via Context.indexToID.
type toolCallAccum struct {
	id       string
	name     string
	argParts []string
}

// Context is one request's StreamingContext: it owns all mutable
// accumulation state plus the Idle->...->terminal transitions. A Context is
// used by exactly one goroutine pair (the upstream reader and, after abort,
// nobody else) but guards its fields with a mutex since the abort observer
// and the reader can race.
type Context struct {
	mu sync.Mutex

	state     State
	startedAt time.Time
	ttft      time.Duration
	ttftSet   bool

	model      string
	textParts  []string
	thinkParts []string
	signature  string
	stopReason ir.StopReason

	inputTokens  int
	outputTokens int
	usageSet     bool

	toolCalls map[string]*toolCallAccum
	toolOrder []string
	indexToID map[int]string

	aborted bool
	saved   bool
}

// New starts a Context in Idle, per spec.md §4.8.
func New() *Context {
	return &Context{
		state:     StateIdle,
		toolCalls: make(map[string]*toolCallAccum),
		indexToID: make(map[int]string),
	}
}

// Start transitions Idle -> Connecting and records the dispatch time that
// TTFT is measured from.
func (c *Context) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateConnecting
	c.startedAt = time.Now()
}

// Abort observes a client-side AbortSignal. Per spec.md §4.8 this only
// stops further forwarding to the client; the caller must keep draining the
// upstream response after calling Abort so the stored Completion reflects
// the full provider response.
func (c *Context) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCompleted && c.state != StateFailed {
		c.state = StateAborted
	}
	c.aborted = true
}

// Aborted reports whether the client-side abort signal has fired.
func (c *Context) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// Observe folds one IR stream event into the accumulator and advances
// Idle/Connecting -> FirstChunk -> Streaming as appropriate. It never
// transitions into a terminal state; Finish does that.
func (c *Context) Observe(ev ir.StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ttftSet {
		c.ttft = time.Since(c.startedAt)
		c.ttftSet = true
		c.state = StateFirstChunk
	}
	if c.state == StateFirstChunk {
		c.state = StateStreaming
	}

	switch ev.Type {
	case ir.EventMessageStart:
		c.model = ev.Model
	case ir.EventContentBlockStart:
		if ev.BlockKind == ir.ContentToolUse {
			acc := &toolCallAccum{id: ev.ToolUseID, name: ev.ToolName}
			c.toolCalls[ev.ToolUseID] = acc
			c.toolOrder = append(c.toolOrder, ev.ToolUseID)
			c.indexToID[ev.Index] = ev.ToolUseID
		}
	case ir.EventContentBlockDelta:
		switch ev.Delta {
		case ir.DeltaText:
			c.textParts = append(c.textParts, ev.Text)
		case ir.DeltaThinking:
			c.thinkParts = append(c.thinkParts, ev.Text)
		case ir.DeltaSignature:
			c.signature = ev.Signature
		case ir.DeltaInputJSON:
			if id, ok := c.indexToID[ev.Index]; ok {
				if acc, ok := c.toolCalls[id]; ok {
					acc.argParts = append(acc.argParts, ev.PartialJSON)
				}
			}
		}
	case ir.EventMessageDelta:
		if ev.StopReason != "" {
			c.stopReason = ev.StopReason
		}
		c.mergeUsage(ev.Usage)
	case ir.EventUsage:
		c.mergeUsage(ev.Usage)
	case ir.EventContentBlockStop, ir.EventMessageStop:
		// No accumulation state changes; terminal assembly happens in Finish.
	}
}

func (c *Context) mergeUsage(u ir.Usage) {
	if u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0 {
		return
	}
	c.inputTokens = u.PromptTokens
	c.outputTokens = u.CompletionTokens
	c.usageSet = true
}

// State reports the current state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TTFT returns the recorded time-to-first-token, or 0 if no chunk arrived.
func (c *Context) TTFT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttft
}

// Duration returns the elapsed time since Start.
func (c *Context) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.startedAt)
}

// HasChunk reports whether at least one chunk was observed, distinguishing
// the spec.md §4.8 "no chunk received" failure from a normal empty stream.
func (c *Context) HasChunk() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttftSet
}

// Snapshot assembles the accumulated IR Response for persistence. Called
// once, from Finish.
func (c *Context) Snapshot() *ir.Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	var content []ir.ContentBlock
	if text := joinParts(c.textParts); text != "" {
		content = append(content, ir.ContentBlock{Kind: ir.ContentText, Text: text})
	}
	if thinking := joinParts(c.thinkParts); thinking != "" {
		content = append(content, ir.ContentBlock{Kind: ir.ContentThinking, Thinking: thinking, Signature: c.signature})
	}

	toolCalls := make([]ir.ToolCall, 0, len(c.toolOrder))
	for _, id := range c.toolOrder {
		acc := c.toolCalls[id]
		args := joinParts(acc.argParts)
		content = append(content, ir.ContentBlock{
			Kind:      ir.ContentToolUse,
			ToolUseID: acc.id,
			ToolName:  acc.name,
			ToolInput: args,
		})
		toolCalls = append(toolCalls, ir.ToolCall{ID: acc.id, Name: acc.name, Arguments: args})
	}

	stopReason := c.stopReason
	if stopReason == "" {
		if len(toolCalls) > 0 {
			stopReason = ir.StopToolUse
		} else {
			stopReason = ir.StopEndTurn
		}
	}

	return &ir.Response{
		Model:      c.model,
		Content:    content,
		StopReason: stopReason,
		Usage: ir.Usage{
			PromptTokens:     c.inputTokens,
			CompletionTokens: c.outputTokens,
			TotalTokens:      c.inputTokens + c.outputTokens,
		},
		ToolCalls: toolCalls,
	}
}

// MarkSaved implements the spec.md §4.8 "saved guard": the terminal
// transition (Completion write + TPM consumption) must run exactly once.
// MarkSaved returns true the first time it is called for this Context and
// false on every subsequent call.
func (c *Context) MarkSaved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saved {
		return false
	}
	c.saved = true
	return true
}

// Finish transitions into a terminal state. state must be one of
// Completed/Aborted/Failed.
func (c *Context) Finish(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func joinParts(parts []string) string {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	if total == 0 {
		return ""
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return string(out)
}
