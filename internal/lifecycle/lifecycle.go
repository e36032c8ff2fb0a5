// Package lifecycle governs recurring template status transitions.
//
// The transition table is the single authority: mutation handlers, the
// administrative override, and the scheduler all validate against it rather
// than flipping status fields directly.
package lifecycle

import (
	"fmt"

	"github.com/dukerupert/skuld/internal/domain"
)

// validTransitions maps each status to the statuses it may move to.
// Completed and cancelled have no outgoing edges.
var validTransitions = map[string][]string{
	domain.TemplateStatusActive: {
		domain.TemplateStatusPaused,
		domain.TemplateStatusCompleted,
		domain.TemplateStatusCancelled,
	},
	domain.TemplateStatusPaused: {
		domain.TemplateStatusActive,
		domain.TemplateStatusCancelled,
	},
	domain.TemplateStatusCompleted: {},
	domain.TemplateStatusCancelled: {},
}

// ValidStatus reports whether s is a known template status.
func ValidStatus(s string) bool {
	_, ok := validTransitions[s]
	return ok
}

// Terminal reports whether s has no outgoing transitions.
func Terminal(s string) bool {
	edges, ok := validTransitions[s]
	return ok && len(edges) == 0
}

// Validate checks the transition from -> to. Attempts to leave a terminal
// status, or any edge outside the table, are rejected as conflicts rather
// than silently ignored.
func Validate(from, to string) error {
	if !ValidStatus(from) {
		return domain.Invalid("template.transition", fmt.Sprintf("unknown status %q", from))
	}
	if !ValidStatus(to) {
		return domain.Invalid("template.transition", fmt.Sprintf("unknown status %q", to))
	}
	if from == to {
		return domain.Conflict("template.transition", fmt.Sprintf("template is already %s", to))
	}
	if Terminal(from) {
		return domain.Conflict("template.transition", fmt.Sprintf("%s templates cannot transition to %s", from, to))
	}

	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return domain.Conflict("template.transition", fmt.Sprintf("cannot transition template from %s to %s", from, to))
}

// CanGenerate validates that a template in the given status may produce an
// invoice. Only active templates generate.
func CanGenerate(status string) error {
	if status == domain.TemplateStatusActive {
		return nil
	}
	return domain.Conflict("template.generate", fmt.Sprintf("cannot generate invoices from a %s template", status))
}
