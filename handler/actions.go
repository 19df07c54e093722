package handler

import (
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/model"
)

// TagEntityAction is the action name the classifier uses to tag extracted
// entities alongside a routing action.
const TagEntityAction = "tag_entity"

// IntentActions builds the structured action set offered to the model during
// the combined classification call: one routing action per handler plus the
// entity tagging action. Arguments double as the extraction schema, so a
// single model call covers intent and entities.
func (r *Registry) IntentActions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(r.byKind)+1)

	for _, def := range r.All() {
		defs = append(defs, model.ToolDefinition{
			Name:        def.ActionName,
			Description: "Route this turn to the " + def.Name + " handler.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"rationale": map[string]any{
						"type":        "string",
						"description": "Short justification for choosing this handler",
					},
					"focus": map[string]any{
						"type":        "string",
						"description": "The aspect of the turn the handler should address first",
					},
				},
				"required": []string{"rationale", "focus"},
			},
		})
	}

	entityNames := make([]string, 0, len(core.EntityKinds()))
	for _, k := range core.EntityKinds() {
		entityNames = append(entityNames, k.String())
	}

	defs = append(defs, model.ToolDefinition{
		Name:        TagEntityAction,
		Description: "Tag one domain entity mentioned in the turn. May be called multiple times.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type": map[string]any{
					"type":        "string",
					"enum":        entityNames,
					"description": "Entity category",
				},
				"value": map[string]any{
					"type":        "string",
					"description": "The entity text as mentioned",
				},
				"salience": map[string]any{
					"type":        "number",
					"description": "How central the entity is to the turn, in [0,1]",
				},
			},
			"required": []string{"type", "value", "salience"},
		},
	})

	return defs
}
