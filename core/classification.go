package core

import "fmt"

// EntityKind tags a span of domain-relevant information extracted from a
// turn. The taxonomy is fixed.
type EntityKind int

const (
	// EntityCondition is a clinical condition or presenting problem.
	EntityCondition EntityKind = iota
	// EntityIntervention is a therapeutic approach or technique.
	EntityIntervention
	// EntityInstrument is an assessment instrument or measure.
	EntityInstrument
	// EntityPopulation is a patient or study population descriptor.
	EntityPopulation
	// EntityDocument is a reference to an uploaded or cited document.
	EntityDocument
	// EntityTopic is a research topic or literature subject.
	EntityTopic
)

// String returns the canonical lowercase name of the entity kind.
func (k EntityKind) String() string {
	switch k {
	case EntityCondition:
		return "condition"
	case EntityIntervention:
		return "intervention"
	case EntityInstrument:
		return "instrument"
	case EntityPopulation:
		return "population"
	case EntityDocument:
		return "document"
	case EntityTopic:
		return "topic"
	default:
		return fmt.Sprintf("entity(%d)", int(k))
	}
}

// ParseEntityKind maps a canonical name back to its EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	switch s {
	case "condition":
		return EntityCondition, nil
	case "intervention":
		return EntityIntervention, nil
	case "instrument":
		return EntityInstrument, nil
	case "population":
		return EntityPopulation, nil
	case "document":
		return EntityDocument, nil
	case "topic":
		return EntityTopic, nil
	default:
		return 0, fmt.Errorf("unknown entity kind %q", s)
	}
}

// EntityKinds returns the full fixed taxonomy in declaration order.
func EntityKinds() []EntityKind {
	return []EntityKind{
		EntityCondition, EntityIntervention, EntityInstrument,
		EntityPopulation, EntityDocument, EntityTopic,
	}
}

// Entity is one tagged span with its extraction confidence. Entities are
// partitioned into primary/secondary by a configured salience cutoff.
type Entity struct {
	Kind       EntityKind `json:"kind"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"` // in [0,1]
	Primary    bool       `json:"primary"`
}

// ClassificationResult is the ephemeral outcome of the combined intent and
// entity model call for one turn. It is produced per turn and never
// persisted beyond the routing decision.
type ClassificationResult struct {
	Handler    HandlerKind `json:"handler"`
	Confidence float64     `json:"confidence"` // raw intent confidence in [0,1]
	Entities   []Entity    `json:"entities,omitempty"`
	Rationale  string      `json:"rationale,omitempty"`
}

// Reference kinds recorded by the context compressor.
const (
	// ReferenceCallback preserves a demonstrative cross-turn callback
	// ("that approach", "the plan we discussed").
	ReferenceCallback = "callback"
	// ReferenceAttachment preserves a mention of an uploaded document.
	ReferenceAttachment = "attachment"
	// ReferenceTopic preserves older content lexically close to the new turn.
	ReferenceTopic = "topic"
)

// ContextualReference is a compact record preserving a salient callback to
// earlier conversation content that would otherwise be lost to compression.
type ContextualReference struct {
	Kind      string  `json:"kind"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

// CompressedContext is the bounded subsequence of history selected for the
// next model call plus the references extracted from dropped turns.
type CompressedContext struct {
	Turns         []Turn                `json:"turns"`
	References    []ContextualReference `json:"references,omitempty"`
	TokenEstimate int                   `json:"token_estimate"`
	Compressed    bool                  `json:"compressed"`
}
