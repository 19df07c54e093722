package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
)

// Explicit switch phrasings in English and Spanish. The capture group is the
// requested mode name; descriptive names ("documentation mode") map through
// handlerAliases alongside the Spanish forms.
var switchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:activate|enable|switch\s+to|change\s+to)\s+(?:the\s+)?(socratic|clinical|academic|documentation|research)(?:\s+(?:mode|handler))?\b`),
	regexp.MustCompile(`(?i)\bactiva(?:r)?\s+(?:el\s+)?modo\s+(?:de\s+)?(socr[áa]tico|cl[íi]nico|acad[ée]mico|documentaci[óo]n|investigaci[óo]n)\b`),
	regexp.MustCompile(`(?i)\bcambia(?:r)?\s+al?\s+modo\s+(?:de\s+)?(socr[áa]tico|cl[íi]nico|acad[ée]mico|documentaci[óo]n|investigaci[óo]n)\b`),
}

var handlerAliases = map[string]string{
	"documentation": "academic", "research": "academic",
	"socrático": "socratic", "socratico": "socratic",
	"clínico": "clinical", "clinico": "clinical",
	"académico": "academic", "academico": "academic",
	"documentación": "academic", "documentacion": "academic",
	"investigación": "academic", "investigacion": "academic",
}

// detectExplicitSwitch scans a turn for a literal handler switch request.
// Explicit requests bypass classification entirely and take precedence over
// every other routing rule.
func detectExplicitSwitch(text string) (core.HandlerKind, bool) {
	for _, re := range switchPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.ToLower(m[1])
		if mapped, ok := handlerAliases[name]; ok {
			name = mapped
		}
		kind, err := core.ParseHandlerKind(name)
		if err != nil {
			continue
		}
		return kind, true
	}
	return 0, false
}

// buildTransitionNote produces the instruction suffix that tells the
// incoming handler why it now owns the conversation. The full history is
// already in its context; the note only marks the transfer.
func buildTransitionNote(prev, next core.HandlerKind, reason string) string {
	note := fmt.Sprintf(
		"The conversation was just transferred from the %s handler to you (%s). Continue seamlessly; the full history above is shared.",
		prev.String(), next.String(),
	)
	if reason != "" {
		note += " Transfer reason: " + reason
	}
	return note
}
