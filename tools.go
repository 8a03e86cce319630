package step

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// ToolSpec declares a tool to the model. Parameters is a JSON Schema object.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Parallel    bool           `json:"-"` // if true, tool can be executed in parallel, e.g. sub-agent, web_search, web_fetch and other read-only tools
}

// NewToolSpec builds a ToolSpec whose parameters are the JSON schema of T.
// T may be an anonymous struct.
func NewToolSpec[T any](name, description string) (spec ToolSpec, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("reflect schema for tool %q: %v", name, r)
		}
	}()

	r := &jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	b, err := json.Marshal(r.Reflect(new(T)))
	if err != nil {
		return ToolSpec{}, errors.Wrapf(err, "encode schema for tool %q", name)
	}
	var params map[string]any
	if err := json.Unmarshal(b, &params); err != nil {
		return ToolSpec{}, errors.Wrapf(err, "decode schema for tool %q", name)
	}
	return ToolSpec{Name: name, Description: description, Parameters: params}, nil
}

// ToolCall is a call handed to Tool.Execute.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments map[string]any
}

// DecodeArgs decodes the call arguments into v.
func (c ToolCall) DecodeArgs(v any) error {
	b, err := json.Marshal(c.Arguments)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ToolResult is what a tool returns. The runner overwrites CallID with
// the originating call's id.
type ToolResult struct {
	CallID  string
	Name    string
	Parts   []Part
	IsError bool
	Details map[string]any // extra data, e.g. diff text for edit tool UI rendering
}

// Tool is something the model can call.
type Tool interface {
	Spec() ToolSpec
	Execute(ctx context.Context, call ToolCall) (ToolResult, error)
}
