package harmonization

import (
	"fmt"
	"strings"

	"github.com/bizmatters/code-harmonizer/internal/intentions"
)

// Readiness reason codes.
const (
	ReasonNoSource         = "no_source"
	ReasonNoIntentions     = "no_intentions"
	ReasonUnknownIntention = "unknown_intention"
)

const (
	messageNoSource     = "Please enter source code to harmonize"
	messageNoIntentions = "Please select at least one intention from the library"
)

// Readiness reports whether a run may start and, if not, why.
type Readiness struct {
	Ready   bool     `json:"ready"`
	Reason  string   `json:"reason,omitempty"`
	Message string   `json:"message,omitempty"`
	Unknown []string `json:"unknown,omitempty"`
}

// CanRun is the entry guard: non-blank source and at least one intention.
func CanRun(sourceCode string, selection []string) bool {
	return strings.TrimSpace(sourceCode) != "" && len(selection) > 0
}

// CheckReadiness evaluates the guard and additionally rejects ids that are
// not in catalog. The source check wins when several preconditions fail.
func CheckReadiness(catalog *intentions.Catalog, sourceCode string, selection []string) Readiness {
	if strings.TrimSpace(sourceCode) == "" {
		return Readiness{Reason: ReasonNoSource, Message: messageNoSource}
	}
	if len(selection) == 0 {
		return Readiness{Reason: ReasonNoIntentions, Message: messageNoIntentions}
	}
	if unknown := catalog.Validate(selection); len(unknown) > 0 {
		return Readiness{
			Reason:  ReasonUnknownIntention,
			Message: fmt.Sprintf("Unknown intention: %s", strings.Join(unknown, ", ")),
			Unknown: unknown,
		}
	}
	return Readiness{Ready: true}
}

// NotReadyError is returned when a run is requested while the guard fails.
type NotReadyError struct {
	Readiness Readiness
}

func (e *NotReadyError) Error() string {
	return "harmonization not ready: " + e.Readiness.Message
}
