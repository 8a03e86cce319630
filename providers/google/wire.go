package google

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Role is the speaker of a Content. The API accepts exactly these two.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Content is one turn of the wire conversation.
type Content struct {
	Role  Role       `json:"role,omitempty"`
	Parts []WirePart `json:"parts"`
}

// PartData is the payload of a WirePart. Exactly one variant is carried per
// part: Text, FunctionCall, FunctionResponse or InlineData.
type PartData interface {
	isPartData()
}

// Text is plain (or, with WirePart.Thought, reasoning) text.
type Text string

// FunctionCall is a model-issued tool invocation. ID is only ever set by the
// server; outgoing calls carry their id inside Args (see callid.go).
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse is a caller-supplied tool result.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// InlineData is base64-encoded binary content such as an image.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

func (Text) isPartData()             {}
func (FunctionCall) isPartData()     {}
func (FunctionResponse) isPartData() {}
func (InlineData) isPartData()       {}

// WirePart is a single element of Content.Parts.
type WirePart struct {
	Data PartData

	// Thought marks text as model reasoning.
	Thought bool
	// ThoughtSignature is the opaque continuation token that must be echoed
	// back verbatim on later turns.
	ThoughtSignature string
}

// Valid reports whether the part carries exactly one known variant.
func (p WirePart) Valid() bool {
	return p.Data != nil
}

type wirePartJSON struct {
	Text             *string           `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
	InlineData       *InlineData       `json:"inlineData,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	ThoughtSignature string            `json:"thoughtSignature,omitempty"`
}

func (p WirePart) MarshalJSON() ([]byte, error) {
	out := wirePartJSON{Thought: p.Thought, ThoughtSignature: p.ThoughtSignature}
	switch d := p.Data.(type) {
	case Text:
		s := string(d)
		out.Text = &s
	case FunctionCall:
		out.FunctionCall = &d
	case FunctionResponse:
		out.FunctionResponse = &d
	case InlineData:
		out.InlineData = &d
	default:
		return nil, errors.Errorf("google: wire part has no data (%T)", p.Data)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a part. Parts with no known variant, or with more
// than one, decode with a nil Data so callers can skip them.
func (p *WirePart) UnmarshalJSON(data []byte) error {
	var in wirePartJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = WirePart{Thought: in.Thought, ThoughtSignature: in.ThoughtSignature}

	n := 0
	if in.Text != nil {
		p.Data = Text(*in.Text)
		n++
	}
	if in.FunctionCall != nil {
		p.Data = *in.FunctionCall
		n++
	}
	if in.FunctionResponse != nil {
		p.Data = *in.FunctionResponse
		n++
	}
	if in.InlineData != nil {
		p.Data = *in.InlineData
		n++
	}
	if n != 1 {
		p.Data = nil
	}
	return nil
}

// GenerateContentRequest is the body of a streamGenerateContent call.
type GenerateContentRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	Tools             []WireTool        `json:"tools,omitempty"`
	ToolConfig        *ToolConfig       `json:"toolConfig,omitempty"`
}

type GenerationConfig struct {
	Temperature     *float64        `json:"temperature,omitempty"`
	MaxOutputTokens *int            `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

type ThinkingConfig struct {
	IncludeThoughts bool `json:"includeThoughts,omitempty"`
	ThinkingBudget  *int `json:"thinkingBudget,omitempty"`
}

type WireTool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type ToolConfig struct {
	FunctionCallingConfig FunctionCallingConfig `json:"functionCallingConfig"`
}

type FunctionCallingConfig struct {
	Mode ToolChoice `json:"mode"`
}

// ToolChoice controls whether the model may, must, or must not call tools.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "AUTO"
	ToolChoiceAny  ToolChoice = "ANY"
	ToolChoiceNone ToolChoice = "NONE"
)

// GenerateContentResponse is one SSE chunk of a streaming response.
type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates,omitempty"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	ModelVersion   string          `json:"modelVersion,omitempty"`
	ResponseID     string          `json:"responseId,omitempty"`
}

type Candidate struct {
	Content       *Content       `json:"content,omitempty"`
	FinishReason  string         `json:"finishReason,omitempty"`
	SafetyRatings []SafetyRating `json:"safetyRatings,omitempty"`
	Index         int            `json:"index,omitempty"`
}

type SafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
	Blocked     bool   `json:"blocked,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	TotalTokenCount         int `json:"totalTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount,omitempty"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount,omitempty"`
}

type PromptFeedback struct {
	BlockReason   string         `json:"blockReason,omitempty"`
	SafetyRatings []SafetyRating `json:"safetyRatings,omitempty"`
}
