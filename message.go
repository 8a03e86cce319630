package step

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of conversation history.
type Message interface {
	role() Role
}

// UserMessage is human input.
type UserMessage struct {
	Parts     []Part `json:"parts,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (UserMessage) role() Role { return RoleUser }

func (m UserMessage) MarshalJSON() ([]byte, error) {
	type alias UserMessage
	return json.Marshal(struct {
		Role Role `json:"role"`
		alias
	}{RoleUser, alias(m)})
}

// AssistantMessage is one model turn, possibly still being assembled.
// Provider and Model identify where it was generated so that model-bound
// content (signatures, thinking) is only replayed to the same model.
type AssistantMessage struct {
	Parts        []Part     `json:"parts,omitempty"`
	Timestamp    int64      `json:"timestamp"`
	Provider     string     `json:"provider,omitempty"`
	Model        string     `json:"model,omitempty"`
	Usage        *Usage     `json:"usage,omitempty"`
	StopReason   StopReason `json:"stop_reason,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Snapshot returns a copy whose Parts slice and Usage are detached from m.
func (m *AssistantMessage) Snapshot() *AssistantMessage {
	c := *m
	c.Parts = append([]Part(nil), m.Parts...)
	if m.Usage != nil {
		u := *m.Usage
		c.Usage = &u
	}
	return &c
}

// ToolCalls returns the tool call parts in order.
func (m AssistantMessage) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, part := range m.Parts {
		if tc, ok := part.(ToolCallPart); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

func (AssistantMessage) role() Role { return RoleAssistant }

func (m AssistantMessage) MarshalJSON() ([]byte, error) {
	type alias AssistantMessage
	return json.Marshal(struct {
		Role Role `json:"role"`
		alias
	}{RoleAssistant, alias(m)})
}

// ToolResultMessage answers the tool call with the same CallID.
type ToolResultMessage struct {
	CallID    string         `json:"call_id"`
	Name      string         `json:"name"`
	IsError   bool           `json:"is_error,omitempty"`
	Parts     []Part         `json:"parts,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

func (ToolResultMessage) role() Role { return RoleTool }

func (m ToolResultMessage) MarshalJSON() ([]byte, error) {
	type alias ToolResultMessage
	return json.Marshal(struct {
		Role Role `json:"role"`
		alias
	}{RoleTool, alias(m)})
}

// StopReason is the terminal status of an assistant turn.
type StopReason string

const (
	StopStop    StopReason = "stop"
	StopLength  StopReason = "length"
	StopToolUse StopReason = "tool_use"
	StopError   StopReason = "error"
	StopAborted StopReason = "aborted"
)

func (m *UserMessage) UnmarshalJSON(data []byte) error {
	type alias UserMessage
	aux := &struct {
		Parts []json.RawMessage `json:"parts,omitempty"`
		*alias
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	parts, err := unmarshalParts(aux.Parts)
	if err != nil {
		return err
	}
	m.Parts = parts
	return nil
}

func (m *AssistantMessage) UnmarshalJSON(data []byte) error {
	type alias AssistantMessage
	aux := &struct {
		Parts []json.RawMessage `json:"parts,omitempty"`
		*alias
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	parts, err := unmarshalParts(aux.Parts)
	if err != nil {
		return err
	}
	m.Parts = parts
	return nil
}

func (m *ToolResultMessage) UnmarshalJSON(data []byte) error {
	type alias ToolResultMessage
	aux := &struct {
		Parts []json.RawMessage `json:"parts,omitempty"`
		*alias
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	parts, err := unmarshalParts(aux.Parts)
	if err != nil {
		return err
	}
	m.Parts = parts
	return nil
}

// UnmarshalMessage decodes a stored message, dispatching on its role.
func UnmarshalMessage(data []byte) (Message, error) {
	var raw struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	switch raw.Role {
	case RoleUser:
		var m UserMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case RoleAssistant:
		var m AssistantMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case RoleTool:
		var m ToolResultMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.Errorf("unknown message role %q", raw.Role)
	}
}
