package streaming

import (
	"bufio"
	"bytes"
	"net/http"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/common/helper"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	"github.com/laiskygw/llm-gateway/relay/ir"
)

const doneSentinel = "[DONE]"

// Flusher is the subset of http.Flusher the processor needs; satisfied by
// gin.ResponseWriter and httptest.ResponseRecorder alike.
type Flusher interface {
	Flush()
}

// Result is the terminal outcome of one streaming request, handed to the
// caller so it can log/record metrics; the Completion write itself already
// happened inside Run (the spec.md §4.8 "saved guard" terminal transition).
type Result struct {
	State      State
	TTFTMs     int
	DurationMs int
	Response   *ir.Response
}

// Finalizer persists the terminal Completion row and consumes TPM tokens,
// in that order (spec.md §4.8: "Completion write happens-before post-flight
// TPM consumption"). Implemented by the controller layer, which knows the
// Completion id and the rate limiter to charge.
type Finalizer interface {
	SaveCompletion(state State, resp *ir.Response, ttftMs, durationMs int) error
	ConsumeTPM(tokens int) error
}

// Processor drives one provider SSE response through a StreamParser,
// accumulates it into a Context, and forwards translated frames to the
// client through a ClientSerializer.
type Processor struct {
	Parser     adaptor.StreamParser
	Serializer adaptor.ClientSerializer
	Finalizer  Finalizer
}

// Run reads resp.Body line-by-line until EOF, feeding "data:" payloads
// through Parser and each resulting IR event through both the Context
// accumulator and the Serializer. clientAbort, if non-nil, is polled
// between chunks; once it fires the processor stops writing to w but keeps
// draining resp.Body so the stored Completion reflects the full upstream
// response -- spec.md §4.8's "cancellation by the client does not cancel
// the upstream call".
func (p *Processor) Run(resp *http.Response, w http.ResponseWriter, flusher Flusher, clientAbort <-chan struct{}) (*Result, error) {
	defer resp.Body.Close()

	sc := New()
	sc.Start()

	scanner := bufio.NewScanner(resp.Body)
	helper.ConfigureScannerBuffer(scanner)

	for scanner.Scan() {
		if isAborted(clientAbort) {
			sc.Abort()
		}

		line := scanner.Bytes()
		payload, ok := dataPayload(line)
		if !ok {
			continue
		}
		if string(payload) == doneSentinel {
			break
		}

		events, err := p.Parser.ParseChunk(payload)
		if err != nil {
			return p.finish(sc, StateFailed, err)
		}

		for _, ev := range events {
			sc.Observe(ev)

			if sc.Aborted() {
				continue // keep draining, stop forwarding
			}

			frame, err := p.Serializer.SerializeStreamEvent(ev)
			if err != nil {
				return p.finish(sc, StateFailed, err)
			}
			if len(frame) == 0 {
				continue
			}
			if _, err := w.Write(frame); err != nil {
				// The client went away mid-write; treat exactly like an
				// observed abort and keep draining upstream.
				sc.Abort()
				continue
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return p.finish(sc, StateFailed, errors.Wrap(err, "read upstream stream"))
	}

	if !sc.HasChunk() {
		return p.finish(sc, StateFailed, errors.New("no chunk received"))
	}

	if !sc.Aborted() {
		if term := p.Serializer.StreamTerminator(); len(term) > 0 {
			_, _ = w.Write(term)
			if flusher != nil {
				flusher.Flush()
			}
		}
		return p.finish(sc, StateCompleted, nil)
	}
	return p.finish(sc, StateAborted, nil)
}

func (p *Processor) finish(sc *Context, state State, runErr error) (*Result, error) {
	sc.Finish(state)
	ttftMs := int(sc.TTFT().Milliseconds())
	durationMs := int(sc.Duration().Milliseconds())

	result := &Result{State: state, TTFTMs: ttftMs, DurationMs: durationMs}
	if state != StateFailed || sc.HasChunk() {
		result.Response = sc.Snapshot()
	}

	if sc.MarkSaved() && p.Finalizer != nil {
		if err := p.Finalizer.SaveCompletion(state, result.Response, ttftMs, durationMs); err != nil {
			return result, errors.Wrap(err, "save completion")
		}
		tokens := 0
		if result.Response != nil {
			tokens = result.Response.Usage.TotalTokens
		}
		if tokens < 0 {
			tokens = 0
		}
		if err := p.Finalizer.ConsumeTPM(tokens); err != nil {
			return result, errors.Wrap(err, "consume tpm")
		}
	}

	return result, runErr
}

// dataPayload strips the SSE "data:" prefix, returning ok=false for
// anything else (event:/id:/comment/blank lines), matching the teacher's
// bufio.ScanLines-based SSE readers (relay/adaptor/gemini/main.go).
func dataPayload(line []byte) ([]byte, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, false
	}
	const prefix = "data:"
	if !bytes.HasPrefix(trimmed, []byte(prefix)) {
		return nil, false
	}
	payload := bytes.TrimSpace(trimmed[len(prefix):])
	return payload, true
}

// isAborted does a non-blocking check of the client abort signal.
func isAborted(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
