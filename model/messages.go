package model

import "github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"

// Message roles understood by the provider adapters.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// FromTurns converts session history into request messages. Handler turns
// become assistant messages; tool turns keep the tool role so adapters can
// map them to provider tool-result formats.
func FromTurns(turns []core.Turn) []Message {
	msgs := make([]Message, 0, len(turns))
	for _, t := range turns {
		role := RoleUser
		switch t.Role {
		case core.RoleHandler:
			role = RoleAssistant
		case core.RoleTool:
			role = RoleTool
		case core.RoleSystem:
			role = RoleSystem
		}
		parts := make([]core.Part, len(t.Parts))
		copy(parts, t.Parts)
		msgs = append(msgs, Message{Role: role, Parts: parts})
	}
	return msgs
}

// UserText builds a single user text message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Parts: []core.Part{core.TextPart{Text: text}}}
}

// SystemText builds a single system text message.
func SystemText(text string) Message {
	return Message{Role: RoleSystem, Parts: []core.Part{core.TextPart{Text: text}}}
}
