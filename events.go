package step

// AssistantEventType names provider-independent stream events.
type AssistantEventType string

const (
	EventStart         AssistantEventType = "start"
	EventTextStart     AssistantEventType = "text_start"
	EventTextDelta     AssistantEventType = "text_delta"
	EventTextEnd       AssistantEventType = "text_end"
	EventThinkingStart AssistantEventType = "thinking_start"
	EventThinkingDelta AssistantEventType = "thinking_delta"
	EventThinkingEnd   AssistantEventType = "thinking_end"
	EventToolCallStart AssistantEventType = "toolcall_start"
	EventToolCallDelta AssistantEventType = "toolcall_delta"
	EventToolCallEnd   AssistantEventType = "toolcall_end"
	EventDone          AssistantEventType = "done"
	EventError         AssistantEventType = "error"
)

// Terminal reports whether t ends an assistant stream.
func (t AssistantEventType) Terminal() bool {
	return t == EventDone || t == EventError
}

// AssistantEvent is one incremental update of an assistant turn. Partial
// is a snapshot of the message as of this event and is never mutated after
// the event is emitted. PartIndex indexes Partial.Parts.
type AssistantEvent struct {
	Type      AssistantEventType
	PartIndex int
	Delta     string

	// ToolCall is set on toolcall_end.
	ToolCall *ToolCallPart

	Partial *AssistantMessage

	Reason StopReason
	Err    string
}

// StepEventType names step lifecycle events.
type StepEventType string

const (
	StepEventStart         StepEventType = "step_start"
	StepEventAssistant     StepEventType = "assistant_event"
	StepEventToolExecStart StepEventType = "tool_exec_start"
	StepEventToolExecEnd   StepEventType = "tool_exec_end"
	StepEventEnd           StepEventType = "step_end"
)

// StepEvent is either a relayed assistant event or tool progress.
type StepEvent struct {
	Type StepEventType

	Assistant *AssistantEvent

	ToolCall   *ToolCall
	ToolResult *ToolResult

	Final *StepResult
}
