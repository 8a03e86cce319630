package google

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/stepkit/step"
)

type blockKind int

const (
	blockNone blockKind = iota
	blockText
	blockThinking
)

// assembler folds response chunks into the assistant message and emits the
// matching events. At most one text or thinking block is open at a time.
// It is owned by a single stream goroutine.
type assembler struct {
	out      *step.AssistantMessage
	resolver *callIDResolver
	cost     step.CostFunc
	emit     func(step.AssistantEvent)
	log      zerolog.Logger

	open    blockKind
	openIdx int
	text    strings.Builder
	sig     string

	blockReason string
}

func newAssembler(out *step.AssistantMessage, cost step.CostFunc, emit func(step.AssistantEvent), log zerolog.Logger) *assembler {
	return &assembler{
		out:      out,
		resolver: newCallIDResolver(),
		cost:     cost,
		emit:     emit,
		log:      log,
	}
}

func (a *assembler) send(ev step.AssistantEvent) {
	ev.Partial = a.out.Snapshot()
	a.emit(ev)
}

func (a *assembler) start() {
	a.send(step.AssistantEvent{Type: step.EventStart})
}

// handle processes one response chunk, parts in order.
func (a *assembler) handle(resp GenerateContentResponse) {
	if resp.UsageMetadata != nil {
		applyUsage(a.out, resp.UsageMetadata, a.cost)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		a.blockReason = resp.PromptFeedback.BlockReason
	}
	if len(resp.Candidates) == 0 {
		return
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			a.handlePart(part)
		}
	}
	if cand.FinishReason != "" {
		a.out.StopReason = mapFinishReason(cand.FinishReason)
		if a.out.StopReason == step.StopError {
			a.out.ErrorMessage = "generation stopped: " + cand.FinishReason
		}
	}
}

func (a *assembler) handlePart(p WirePart) {
	switch d := p.Data.(type) {
	case Text:
		a.handleText(string(d), p.Thought, p.ThoughtSignature)
	case FunctionCall:
		a.handleFunctionCall(d, p.ThoughtSignature)
	case nil:
		a.log.Warn().Msg("skipping response part without exactly one known field")
	default:
		a.log.Debug().Str("part", partKind(p.Data)).Msg("ignoring unsupported response part")
	}
}

func (a *assembler) handleText(text string, thought bool, sig string) {
	want := blockText
	if thought {
		want = blockThinking
	}
	if text == "" {
		// A bare signature belongs to the block it follows.
		if sig != "" && a.open == want {
			a.sig = sig
			a.syncPart()
		}
		return
	}

	if a.open != blockNone && a.open != want {
		a.closeBlock()
	}
	if a.open == blockNone {
		a.openBlock(want)
	}
	if sig != "" {
		a.sig = sig
	}
	a.text.WriteString(text)
	a.syncPart()

	typ := step.EventTextDelta
	if want == blockThinking {
		typ = step.EventThinkingDelta
	}
	a.send(step.AssistantEvent{Type: typ, PartIndex: a.openIdx, Delta: text})
}

func (a *assembler) openBlock(kind blockKind) {
	a.open = kind
	a.text.Reset()
	a.sig = ""
	typ := step.EventTextStart
	if kind == blockThinking {
		a.out.Parts = append(a.out.Parts, step.ThinkingPart{ModelName: a.out.Model})
		typ = step.EventThinkingStart
	} else {
		a.out.Parts = append(a.out.Parts, step.TextPart{})
	}
	a.openIdx = len(a.out.Parts) - 1
	a.send(step.AssistantEvent{Type: typ, PartIndex: a.openIdx})
}

// syncPart writes the open block's accumulated state into out.Parts.
func (a *assembler) syncPart() {
	switch a.open {
	case blockText:
		a.out.Parts[a.openIdx] = step.TextPart{Text: a.text.String(), Signature: a.sig}
	case blockThinking:
		a.out.Parts[a.openIdx] = step.ThinkingPart{Thinking: a.text.String(), Signature: a.sig, ModelName: a.out.Model}
	}
}

// closeBlock ends the open block, if any, with its accumulated content.
func (a *assembler) closeBlock() {
	if a.open == blockNone {
		return
	}
	a.syncPart()
	typ := step.EventTextEnd
	if a.open == blockThinking {
		typ = step.EventThinkingEnd
	}
	idx, content := a.openIdx, a.text.String()
	a.open = blockNone
	a.text.Reset()
	a.sig = ""
	a.send(step.AssistantEvent{Type: typ, PartIndex: idx, Delta: content})
}

func (a *assembler) handleFunctionCall(fc FunctionCall, sig string) {
	a.closeBlock()

	id, args := a.resolver.resolve(fc)
	call := step.ToolCallPart{
		CallID:    id,
		Name:      fc.Name,
		Arguments: args,
		Signature: sig,
	}
	a.out.Parts = append(a.out.Parts, call)
	idx := len(a.out.Parts) - 1

	a.send(step.AssistantEvent{Type: step.EventToolCallStart, PartIndex: idx})
	a.send(step.AssistantEvent{Type: step.EventToolCallDelta, PartIndex: idx, Delta: string(call.ArgsJSON())})
	a.send(step.AssistantEvent{Type: step.EventToolCallEnd, PartIndex: idx, ToolCall: &call})
}

// finish settles the stop reason once the stream has ended normally.
func (a *assembler) finish() {
	a.closeBlock()
	if a.blockReason != "" && a.out.StopReason == "" {
		a.out.StopReason = step.StopError
		a.out.ErrorMessage = "prompt blocked: " + a.blockReason
	}
	if a.out.StopReason == "" {
		a.out.StopReason = step.StopStop
	}
	if len(a.out.ToolCalls()) > 0 {
		a.out.StopReason = step.StopToolUse
		a.out.ErrorMessage = ""
	}
}

// fail records a fatal error. reason is StopError or StopAborted.
func (a *assembler) fail(reason step.StopReason, msg string) {
	a.closeBlock()
	a.out.StopReason = reason
	a.out.ErrorMessage = msg
}

// terminal returns the single event that ends the stream.
func (a *assembler) terminal() step.AssistantEvent {
	switch a.out.StopReason {
	case step.StopStop, step.StopLength, step.StopToolUse:
		return step.AssistantEvent{Type: step.EventDone, Reason: a.out.StopReason, Partial: a.out.Snapshot()}
	default:
		return step.AssistantEvent{Type: step.EventError, Reason: a.out.StopReason, Err: a.out.ErrorMessage, Partial: a.out.Snapshot()}
	}
}

func mapFinishReason(reason string) step.StopReason {
	switch reason {
	case "STOP":
		return step.StopStop
	case "MAX_TOKENS":
		return step.StopLength
	case "SAFETY", "RECITATION":
		return step.StopError
	default:
		return step.StopStop
	}
}

func partKind(d PartData) string {
	switch d.(type) {
	case InlineData:
		return "inlineData"
	case FunctionResponse:
		return "functionResponse"
	default:
		return "unknown"
	}
}
