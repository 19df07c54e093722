package core

import "fmt"

// HandlerKind identifies one of the fixed specialized response generators.
// The set is closed: routing decisions, session state and configuration all
// operate on this enum so an unknown handler is unrepresentable rather than
// a runtime string-compare bug.
type HandlerKind int

const (
	// HandlerSocratic drives reflective, question-led dialogue. It is the
	// conventional fallback when routing confidence is low.
	HandlerSocratic HandlerKind = iota
	// HandlerClinical focuses on case conceptualization and clinical reasoning.
	HandlerClinical
	// HandlerAcademic is the documentation and research oriented handler. It
	// owns literature search tooling and is the target of the pending
	// attachment override.
	HandlerAcademic
)

// String returns the canonical lowercase name of the handler.
func (k HandlerKind) String() string {
	switch k {
	case HandlerSocratic:
		return "socratic"
	case HandlerClinical:
		return "clinical"
	case HandlerAcademic:
		return "academic"
	default:
		return fmt.Sprintf("handler(%d)", int(k))
	}
}

// Valid reports whether k is a member of the closed handler set.
func (k HandlerKind) Valid() bool {
	return k >= HandlerSocratic && k <= HandlerAcademic
}

// ParseHandlerKind maps a canonical name back to its HandlerKind.
func ParseHandlerKind(s string) (HandlerKind, error) {
	switch s {
	case "socratic":
		return HandlerSocratic, nil
	case "clinical":
		return HandlerClinical, nil
	case "academic":
		return HandlerAcademic, nil
	default:
		return 0, fmt.Errorf("unknown handler kind %q", s)
	}
}

// HandlerKinds returns all members of the closed handler set in stable order.
func HandlerKinds() []HandlerKind {
	return []HandlerKind{HandlerSocratic, HandlerClinical, HandlerAcademic}
}
