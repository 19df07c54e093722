// Package handler defines the closed set of specialized conversation
// handlers and the registry the router and classifier resolve them through.
package handler

import (
	"fmt"
	"sort"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/config"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/model"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/tool"
)

// Definition is the resolved runtime description of one handler: its
// routing parameters, model parameters and the tools it may invoke.
// Definitions are immutable after registry construction.
type Definition struct {
	Kind                core.HandlerKind
	Name                string
	ActionName          string
	SystemPrompt        string
	Keywords            []string
	IntentWeight        float64
	EntityWeight        float64
	ThresholdOffset     float64
	SpecializedEntities []core.EntityKind
	Temperature         float64
	MaxTokens           int64
	Tools               map[string]tool.Tool
	Model               model.Model
}

// ToolDefinitions returns model-facing definitions of the handler's tools in
// stable name order.
func (d *Definition) ToolDefinitions() []model.ToolDefinition {
	names := make([]string, 0, len(d.Tools))
	for name := range d.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := d.Tools[name]
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// HasSpecialized reports whether kind is in the handler's specialized entity
// categories.
func (d *Definition) HasSpecialized(kind core.EntityKind) bool {
	for _, k := range d.SpecializedEntities {
		if k == kind {
			return true
		}
	}
	return false
}

// Registry holds the closed handler set keyed by kind and by routing action
// name. The set is fixed at construction; routing never sees a kind outside
// it.
type Registry struct {
	byKind   map[core.HandlerKind]*Definition
	byAction map[string]*Definition
	fallback *Definition
}

// NewRegistry resolves the configured handler set against the model and tool
// catalog. Every configured handler name must parse to a known kind and
// every referenced tool must exist in the catalog.
func NewRegistry(cfg *config.Config, m model.Model, catalog map[string]tool.Tool) (*Registry, error) {
	if len(cfg.Handlers) == 0 {
		return nil, fmt.Errorf("no handlers configured")
	}

	r := &Registry{
		byKind:   make(map[core.HandlerKind]*Definition, len(cfg.Handlers)),
		byAction: make(map[string]*Definition, len(cfg.Handlers)),
	}

	for name, hc := range cfg.Handlers {
		kind, err := core.ParseHandlerKind(name)
		if err != nil {
			return nil, fmt.Errorf("handler %q: %w", name, err)
		}

		specialized := make([]core.EntityKind, 0, len(hc.SpecializedEntities))
		for _, e := range hc.SpecializedEntities {
			ek, err := core.ParseEntityKind(e)
			if err != nil {
				return nil, fmt.Errorf("handler %q specialized entity: %w", name, err)
			}
			specialized = append(specialized, ek)
		}

		tools := make(map[string]tool.Tool, len(hc.Tools))
		for _, tn := range hc.Tools {
			t, ok := catalog[tn]
			if !ok {
				return nil, fmt.Errorf("handler %q references unknown tool %q", name, tn)
			}
			tools[tn] = t
		}

		def := &Definition{
			Kind:                kind,
			Name:                name,
			ActionName:          "route_" + name,
			SystemPrompt:        hc.SystemPrompt,
			Keywords:            append([]string(nil), hc.Keywords...),
			IntentWeight:        hc.IntentWeight,
			EntityWeight:        hc.EntityWeight,
			ThresholdOffset:     hc.ThresholdOffset,
			SpecializedEntities: specialized,
			Temperature:         hc.Temperature,
			MaxTokens:           hc.MaxTokens,
			Tools:               tools,
			Model:               m,
		}
		r.byKind[kind] = def
		r.byAction[def.ActionName] = def
	}

	fallbackKind, err := core.ParseHandlerKind(cfg.DefaultHandler)
	if err != nil {
		return nil, fmt.Errorf("default handler: %w", err)
	}
	fb, ok := r.byKind[fallbackKind]
	if !ok {
		return nil, fmt.Errorf("default handler %q not in handler set", cfg.DefaultHandler)
	}
	r.fallback = fb

	return r, nil
}

// Get returns the definition for a kind.
func (r *Registry) Get(kind core.HandlerKind) (*Definition, error) {
	def, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("no handler registered for kind %q", kind)
	}
	return def, nil
}

// ByAction resolves a routing action name (route_clinical etc.) to its
// handler definition.
func (r *Registry) ByAction(action string) (*Definition, bool) {
	def, ok := r.byAction[action]
	return def, ok
}

// Fallback returns the configured default handler definition.
func (r *Registry) Fallback() *Definition { return r.fallback }

// All returns every registered definition in kind order.
func (r *Registry) All() []*Definition {
	defs := make([]*Definition, 0, len(r.byKind))
	for _, kind := range core.HandlerKinds() {
		if def, ok := r.byKind[kind]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}
