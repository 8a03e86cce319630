package google

import (
	"strings"

	"github.com/stepkit/step"
)

// ToolResultRole is the default role under which tool results are framed.
//
// The API only accepts "user" and "model" turns, and guidance on which one a
// functionResponse belongs to has varied across API and model versions. It is
// a single policy value: override it per provider with WithToolResultRole.
const ToolResultRole = RoleUser

// toolResultKey wraps tool result text inside functionResponse.response.
const toolResultKey = "output"

const emptyToolResult = "(no output)"

type convertOptions struct {
	provider       string
	model          string
	toolResultRole Role
}

// convertMessages converts history into wire contents, preserving order.
// Anything that cannot be represented is omitted, and a message that ends up
// with no parts produces no content.
func convertMessages(history []step.Message, opts convertOptions) []Content {
	contents := make([]Content, 0, len(history))
	add := func(c Content) {
		if len(c.Parts) > 0 {
			contents = append(contents, c)
		}
	}

	for _, msg := range history {
		switch m := msg.(type) {
		case step.UserMessage:
			add(convertUserMessage(m))
		case *step.UserMessage:
			add(convertUserMessage(*m))
		case step.AssistantMessage:
			add(convertAssistantMessage(m, opts))
		case *step.AssistantMessage:
			add(convertAssistantMessage(*m, opts))
		case step.ToolResultMessage:
			add(convertToolResultMessage(m, opts))
		case *step.ToolResultMessage:
			add(convertToolResultMessage(*m, opts))
		}
	}
	return contents
}

func convertUserMessage(m step.UserMessage) Content {
	c := Content{Role: RoleUser}
	for _, part := range m.Parts {
		switch p := partValue(part).(type) {
		case step.TextPart:
			if p.Text != "" {
				c.Parts = append(c.Parts, WirePart{Data: Text(p.Text)})
			}
		case step.ImagePart:
			c.Parts = append(c.Parts, WirePart{Data: InlineData{MimeType: p.MimeType, Data: p.DataB64}})
		}
	}
	return c
}

func convertAssistantMessage(m step.AssistantMessage, opts convertOptions) Content {
	// Signatures and reasoning are bound to the model that produced them.
	sameModel := m.Provider == opts.provider && m.Model == opts.model

	signature := func(sig string) string {
		if sameModel {
			return sig
		}
		return ""
	}

	c := Content{Role: RoleModel}
	for _, part := range m.Parts {
		switch p := partValue(part).(type) {
		case step.TextPart:
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			c.Parts = append(c.Parts, WirePart{Data: Text(p.Text), ThoughtSignature: signature(p.Signature)})
		case step.ThinkingPart:
			if strings.TrimSpace(p.Thinking) == "" {
				continue
			}
			if sameModel {
				c.Parts = append(c.Parts, WirePart{Data: Text(p.Thinking), Thought: true, ThoughtSignature: p.Signature})
			} else {
				c.Parts = append(c.Parts, WirePart{Data: Text(p.Thinking)})
			}
		case step.ToolCallPart:
			c.Parts = append(c.Parts, WirePart{
				Data: FunctionCall{
					Name: p.Name,
					Args: attachCallID(p.Arguments, p.CallID),
				},
				ThoughtSignature: signature(p.Signature),
			})
		}
	}
	return c
}

func convertToolResultMessage(m step.ToolResultMessage, opts convertOptions) Content {
	var text strings.Builder
	var images []WirePart
	for _, part := range m.Parts {
		switch p := partValue(part).(type) {
		case step.TextPart:
			if text.Len() > 0 && p.Text != "" {
				text.WriteString("\n")
			}
			text.WriteString(p.Text)
		case step.ImagePart:
			images = append(images, WirePart{Data: InlineData{MimeType: p.MimeType, Data: p.DataB64}})
		}
	}
	output := text.String()
	if output == "" {
		output = emptyToolResult
	}

	role := opts.toolResultRole
	if role == "" {
		role = ToolResultRole
	}
	c := Content{Role: role}
	c.Parts = append(c.Parts, WirePart{Data: FunctionResponse{
		Name:     m.Name,
		Response: map[string]any{toolResultKey: output},
	}})
	c.Parts = append(c.Parts, images...)
	return c
}

// convertTools groups all declarations under one tools entry. No tools
// means no tools field.
func convertTools(specs []step.ToolSpec) []WireTool {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		decls = append(decls, FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  sanitizeSchema(spec.Parameters),
		})
	}
	return []WireTool{{FunctionDeclarations: decls}}
}

// unsupportedSchemaKeys are JSON-schema keywords the API rejects.
var unsupportedSchemaKeys = map[string]bool{
	"$schema":              true,
	"$id":                  true,
	"additionalProperties": true,
}

// sanitizeSchema returns a deep copy of schema without unsupported keywords.
func sanitizeSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if unsupportedSchemaKeys[k] {
			continue
		}
		if props, ok := v.(map[string]any); ok && k == "properties" {
			// keys here are property names, not keywords
			clean := make(map[string]any, len(props))
			for name, sub := range props {
				clean[name] = sanitizeValue(sub)
			}
			out[k] = clean
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return sanitizeSchema(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = sanitizeValue(e)
		}
		return out
	default:
		return v
	}
}

// partValue dereferences pointer parts so callers can switch on values.
func partValue(p step.Part) step.Part {
	switch x := p.(type) {
	case *step.TextPart:
		if x != nil {
			return *x
		}
	case *step.ThinkingPart:
		if x != nil {
			return *x
		}
	case *step.ImagePart:
		if x != nil {
			return *x
		}
	case *step.ToolCallPart:
		if x != nil {
			return *x
		}
	default:
		return p
	}
	return nil
}
