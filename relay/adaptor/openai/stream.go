package openai

import (
	"bytes"
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	"github.com/laiskygw/llm-gateway/relay/ir"
)

// mainContentIndex is the IR content-block index used for the single
// text/thinking stream OpenAI's wire carries; tool calls get index
// 1+wireIndex so the two address spaces never collide (spec.md §9: key
// tool calls by id, but index is still needed to route deltas).
const mainContentIndex = 0

// streamParser is a fresh-per-response adaptor.StreamParser for the
// openai/azure/ollama chat-completions chunk stream. It recovers the
// block-oriented IR event set from OpenAI's flat delta stream, which has
// no explicit block-start/stop framing of its own.
type streamParser struct {
	started        bool
	finished       bool
	openedText     bool
	openedThinking bool
	openedTools    map[int]bool
	blockOrder     []int
}

// NewStreamParser implements adaptor.ResponseAdaptor.
func (chatAdaptor) NewStreamParser(providerType model.ProviderType) adaptor.StreamParser {
	return &streamParser{openedTools: map[int]bool{}}
}

func (p *streamParser) ParseChunk(raw []byte) ([]ir.StreamEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if string(trimmed) == "[DONE]" {
		return p.finishEvents(ir.StopUnknown, ir.Usage{}), nil
	}

	var chunk ChatChunk
	if err := json.Unmarshal(trimmed, &chunk); err != nil {
		return nil, errors.Wrap(err, "decode chat completion chunk")
	}

	var events []ir.StreamEvent
	if !p.started {
		events = append(events, ir.StreamEvent{Type: ir.EventMessageStart, Model: chunk.Model})
		p.started = true
	}

	// Vendor tolerance (spec.md §9 open question): an empty choices array
	// accompanied by a usage object is a terminal frame some providers
	// (and the OpenAI "stream_options.include_usage" trailer) send after
	// the real finish_reason chunk.
	if len(chunk.Choices) == 0 {
		if chunk.Usage != nil {
			events = append(events, p.finishEvents(ir.StopUnknown, usageFromWire(chunk.Usage))...)
		}
		return events, nil
	}

	choice := chunk.Choices[0]
	delta := choice.Delta

	if delta.ReasoningContent != "" {
		if !p.openedThinking {
			events = append(events, ir.StreamEvent{Type: ir.EventContentBlockStart, Index: mainContentIndex, BlockKind: ir.ContentThinking})
			p.openedThinking = true
			p.blockOrder = append(p.blockOrder, mainContentIndex)
		}
		events = append(events, ir.StreamEvent{Type: ir.EventContentBlockDelta, Index: mainContentIndex, Delta: ir.DeltaThinking, Text: delta.ReasoningContent})
	}

	if delta.Content != "" {
		if !p.openedText {
			events = append(events, ir.StreamEvent{Type: ir.EventContentBlockStart, Index: mainContentIndex, BlockKind: ir.ContentText})
			p.openedText = true
			if !p.openedThinking {
				p.blockOrder = append(p.blockOrder, mainContentIndex)
			}
		}
		events = append(events, ir.StreamEvent{Type: ir.EventContentBlockDelta, Index: mainContentIndex, Delta: ir.DeltaText, Text: delta.Content})
	}

	for _, tc := range delta.ToolCalls {
		if tc.Index == nil {
			// Wire bug (spec.md §9): a tool-call delta without an index
			// cannot be routed to any block. Drop it rather than guess.
			continue
		}
		idx := 1 + *tc.Index

		if tc.ID != "" && !p.openedTools[idx] {
			events = append(events, ir.StreamEvent{
				Type: ir.EventContentBlockStart, Index: idx,
				BlockKind: ir.ContentToolUse, ToolUseID: tc.ID, ToolName: tc.Function.Name,
			})
			p.openedTools[idx] = true
			p.blockOrder = append(p.blockOrder, idx)
		}
		if tc.Function.Arguments != "" {
			events = append(events, ir.StreamEvent{Type: ir.EventContentBlockDelta, Index: idx, Delta: ir.DeltaInputJSON, PartialJSON: tc.Function.Arguments})
		}
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		events = append(events, p.finishEvents(stopReasonFromFinish(*choice.FinishReason), usageFromWire(chunk.Usage))...)
	}

	return events, nil
}

func (p *streamParser) finishEvents(reason ir.StopReason, usage ir.Usage) []ir.StreamEvent {
	if p.finished {
		return nil
	}
	p.finished = true

	events := make([]ir.StreamEvent, 0, len(p.blockOrder)+2)
	for _, idx := range p.blockOrder {
		events = append(events, ir.StreamEvent{Type: ir.EventContentBlockStop, Index: idx})
	}
	events = append(events, ir.StreamEvent{Type: ir.EventMessageDelta, StopReason: reason, Usage: usage})
	events = append(events, ir.StreamEvent{Type: ir.EventMessageStop})
	return events
}

func usageFromWire(u *UsageWire) ir.Usage {
	if u == nil {
		return ir.Usage{}
	}
	return ir.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
}

// SerializeStreamEvent implements adaptor.ResponseAdaptor: renders one IR
// event as zero or one "data: {...}\n\n" chat.completion.chunk frame.
func (chatAdaptor) SerializeStreamEvent(ev ir.StreamEvent) ([]byte, error) {
	switch ev.Type {
	case ir.EventMessageStart:
		return frameChunk(ChatChunk{
			Object: "chat.completion.chunk",
			Model:  ev.Model,
			Choices: []ChatChunkChoice{{Delta: ChatChunkDelta{Role: "assistant"}}},
		})

	case ir.EventContentBlockStart:
		if ev.BlockKind != ir.ContentToolUse {
			return nil, nil
		}
		wireIndex := ev.Index - 1
		return frameChunk(ChatChunk{
			Object: "chat.completion.chunk",
			Choices: []ChatChunkChoice{{Delta: ChatChunkDelta{
				ToolCalls: []ToolCallWire{{Index: &wireIndex, ID: ev.ToolUseID, Type: "function", Function: FunctionCall{Name: ev.ToolName}}},
			}}},
		})

	case ir.EventContentBlockDelta:
		switch ev.Delta {
		case ir.DeltaText:
			return frameChunk(ChatChunk{Object: "chat.completion.chunk", Choices: []ChatChunkChoice{{Delta: ChatChunkDelta{Content: ev.Text}}}})
		case ir.DeltaThinking:
			return frameChunk(ChatChunk{Object: "chat.completion.chunk", Choices: []ChatChunkChoice{{Delta: ChatChunkDelta{ReasoningContent: ev.Text}}}})
		case ir.DeltaInputJSON:
			wireIndex := ev.Index - 1
			return frameChunk(ChatChunk{
				Object: "chat.completion.chunk",
				Choices: []ChatChunkChoice{{Delta: ChatChunkDelta{
					ToolCalls: []ToolCallWire{{Index: &wireIndex, Function: FunctionCall{Arguments: ev.PartialJSON}}},
				}}},
			})
		default:
			return nil, nil
		}

	case ir.EventContentBlockStop:
		return nil, nil

	case ir.EventMessageDelta:
		finish := finishFromStopReason(ev.StopReason)
		return frameChunk(ChatChunk{
			Object:  "chat.completion.chunk",
			Choices: []ChatChunkChoice{{Delta: ChatChunkDelta{}, FinishReason: &finish}},
		})

	case ir.EventUsage:
		return frameChunk(ChatChunk{
			Object:  "chat.completion.chunk",
			Choices: []ChatChunkChoice{},
			Usage:   &UsageWire{PromptTokens: ev.Usage.PromptTokens, CompletionTokens: ev.Usage.CompletionTokens, TotalTokens: ev.Usage.TotalTokens},
		})

	case ir.EventMessageStop:
		return nil, nil

	default:
		return nil, nil
	}
}

func frameChunk(chunk ChatChunk) ([]byte, error) {
	body, err := json.Marshal(chunk)
	if err != nil {
		return nil, errors.Wrap(err, "marshal chat completion chunk")
	}
	var buf bytes.Buffer
	buf.WriteString("data: ")
	buf.Write(body)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// StreamTerminator implements adaptor.ResponseAdaptor.
func (chatAdaptor) StreamTerminator() []byte {
	return []byte("data: [DONE]\n\n")
}
