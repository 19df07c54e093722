package core

import (
	"encoding/json"
	"fmt"
)

// Part represents a polymorphic segment of turn content. Concrete part types
// implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) isPart() {}

// AttachmentPart references an uploaded document by opaque id. Resolution of
// the id to real metadata is an external concern (AttachmentResolver).
type AttachmentPart struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (AttachmentPart) isPart() {}

// ToolCallPart records a tool invocation request emitted by a handler stream.
type ToolCallPart struct {
	Call ToolInvocationRequest `json:"call"`
}

func (ToolCallPart) isPart() {}

// ToolResultPart annotates a turn with the outcome of a tool invocation.
type ToolResultPart struct {
	Result ToolResult `json:"result"`
}

func (ToolResultPart) isPart() {}

// partEnvelope is the serialized form of a Part. The Type discriminator keeps
// the closed set decodable from session storage.
type partEnvelope struct {
	Type       string                 `json:"type"`
	Text       *TextPart              `json:"text,omitempty"`
	Attachment *AttachmentPart        `json:"attachment,omitempty"`
	Call       *ToolInvocationRequest `json:"call,omitempty"`
	Result     *ToolResult            `json:"result,omitempty"`
}

// MarshalParts serializes an ordered part list for durable storage.
func MarshalParts(parts []Part) ([]byte, error) {
	envs := make([]partEnvelope, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case TextPart:
			envs = append(envs, partEnvelope{Type: "text", Text: &v})
		case AttachmentPart:
			envs = append(envs, partEnvelope{Type: "attachment", Attachment: &v})
		case ToolCallPart:
			envs = append(envs, partEnvelope{Type: "tool_call", Call: &v.Call})
		case ToolResultPart:
			envs = append(envs, partEnvelope{Type: "tool_result", Result: &v.Result})
		default:
			return nil, fmt.Errorf("unknown part type %T", p)
		}
	}
	return json.Marshal(envs)
}

// UnmarshalParts restores an ordered part list serialized by MarshalParts.
func UnmarshalParts(data []byte) ([]Part, error) {
	var envs []partEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, err
	}
	parts := make([]Part, 0, len(envs))
	for _, env := range envs {
		switch env.Type {
		case "text":
			if env.Text == nil {
				return nil, fmt.Errorf("text part missing payload")
			}
			parts = append(parts, *env.Text)
		case "attachment":
			if env.Attachment == nil {
				return nil, fmt.Errorf("attachment part missing payload")
			}
			parts = append(parts, *env.Attachment)
		case "tool_call":
			if env.Call == nil {
				return nil, fmt.Errorf("tool_call part missing payload")
			}
			parts = append(parts, ToolCallPart{Call: *env.Call})
		case "tool_result":
			if env.Result == nil {
				return nil, fmt.Errorf("tool_result part missing payload")
			}
			parts = append(parts, ToolResultPart{Result: *env.Result})
		default:
			return nil, fmt.Errorf("unknown part type %q", env.Type)
		}
	}
	return parts, nil
}
