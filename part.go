package step

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// PartType tags a Part in its JSON form.
type PartType string

const (
	PartText     PartType = "text"
	PartThinking PartType = "thinking"
	PartImage    PartType = "image"
	PartToolCall PartType = "tool_call"
)

// Part is one typed piece of message content.
type Part interface {
	partType() PartType
}

// TextPart is plain text.
type TextPart struct {
	Text string `json:"text"`
	// Signature is an opaque continuation token some vendors attach to text.
	Signature string `json:"signature,omitempty"`
}

func (TextPart) partType() PartType { return PartText }

func (p TextPart) MarshalJSON() ([]byte, error) {
	type alias TextPart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		alias
	}{PartText, alias(p)})
}

// ThinkingPart is model reasoning. Signature and ModelName let the same
// model verify it when it is replayed.
type ThinkingPart struct {
	ID       string `json:"id,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	// Opaque; only the producing model can check it.
	Signature string `json:"signature,omitempty"`
	ModelName string `json:"model_name,omitempty"`
}

func (ThinkingPart) partType() PartType { return PartThinking }

func (p ThinkingPart) MarshalJSON() ([]byte, error) {
	type alias ThinkingPart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		alias
	}{PartThinking, alias(p)})
}

// ImagePart is inline image data, base64 encoded.
type ImagePart struct {
	MimeType string `json:"mime_type"`
	DataB64  string `json:"data_b64"`
}

func (ImagePart) partType() PartType { return PartImage }

func (p ImagePart) MarshalJSON() ([]byte, error) {
	type alias ImagePart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		alias
	}{PartImage, alias(p)})
}

// ToolCallPart asks the caller to run a tool.
type ToolCallPart struct {
	CallID    string         `json:"call_id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Signature string         `json:"signature,omitempty"`
}

func (ToolCallPart) partType() PartType { return PartToolCall }

func (p ToolCallPart) MarshalJSON() ([]byte, error) {
	type alias ToolCallPart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		alias
	}{PartToolCall, alias(p)})
}

// ArgsJSON returns the arguments encoded as a JSON object.
func (p ToolCallPart) ArgsJSON() json.RawMessage {
	if p.Arguments == nil {
		return json.RawMessage("{}")
	}
	b, err := json.Marshal(p.Arguments)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

// UnmarshalPart decodes one part, dispatching on its type tag.
func UnmarshalPart(data []byte) (Part, error) {
	var raw struct {
		Type PartType `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	switch raw.Type {
	case PartText:
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartThinking:
		var p ThinkingPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartImage:
		var p ImagePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartToolCall:
		var p ToolCallPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, errors.Errorf("unknown part type %q", raw.Type)
	}
}

func unmarshalParts(rawParts []json.RawMessage) ([]Part, error) {
	parts := make([]Part, 0, len(rawParts))
	for _, raw := range rawParts {
		p, err := UnmarshalPart(raw)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}
