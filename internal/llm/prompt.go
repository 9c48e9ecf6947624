package llm

import (
	"fmt"
	"strings"
)

const (
	codeMarker         = "Original code:\n"
	instructionsMarker = "\n\nInstructions:\n"
	idsPrefix          = "Intention ids: "
	namesPrefix        = "Selected intentions: "
)

const promptTemplate = `You are a code harmonization engine. Transform this code based on the selected intentions: %s.

Original code:
%s

Instructions:
- Apply the selected transformations while preserving functionality
- Focus on the specific intentions requested
- Maintain code readability and best practices
- Return only the transformed code, no explanations

Intention ids: %s
Selected intentions: %s`

// BuildPrompt renders the completion prompt for a source and its selected
// intentions. names holds the display name for each id, in the same order.
func BuildPrompt(sourceCode string, ids, names []string) string {
	joined := strings.Join(ids, ", ")
	return fmt.Sprintf(promptTemplate, joined, sourceCode, joined, strings.Join(names, ", "))
}

// ParsedPrompt is what the mock adapter recovers from a prompt.
type ParsedPrompt struct {
	Code string
	// Intentions are ids when the prompt carries them, display names otherwise.
	Intentions []string
}

// ParsePrompt extracts the verbatim source and the requested intentions.
// ok is false when the prompt has no code section.
func ParsePrompt(prompt string) (ParsedPrompt, bool) {
	start := strings.Index(prompt, codeMarker)
	if start < 0 {
		return ParsedPrompt{}, false
	}
	rest := prompt[start+len(codeMarker):]
	// the source itself may mention "Instructions:", so take the last marker
	end := strings.LastIndex(rest, instructionsMarker)
	if end < 0 {
		return ParsedPrompt{}, false
	}

	parsed := ParsedPrompt{Code: rest[:end]}
	tail := rest[end:]
	if line, ok := lastLineWithPrefix(tail, idsPrefix); ok {
		parsed.Intentions = splitList(line)
	} else if line, ok := lastLineWithPrefix(tail, namesPrefix); ok {
		parsed.Intentions = splitList(line)
	}
	return parsed, true
}

func lastLineWithPrefix(text, prefix string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], prefix) {
			return strings.TrimPrefix(lines[i], prefix), true
		}
	}
	return "", false
}

func splitList(line string) []string {
	var out []string
	for _, part := range strings.Split(line, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
