package llm

import (
	"context"
	"regexp"
	"strings"

	"github.com/bizmatters/code-harmonizer/internal/intentions"
)

// Rule identifies one textual substitution of the mock engine.
type Rule int

const (
	RuleConstDeclarations Rule = iota + 1
	RuleModernSyntax
	RuleStatementReflow
	RuleStrictNullChecks
	RuleOptionalChaining
)

// rules run in this order, each on the output of the previous one
var ruleOrder = []Rule{
	RuleConstDeclarations,
	RuleModernSyntax,
	RuleStatementReflow,
	RuleStrictNullChecks,
	RuleOptionalChaining,
}

var ruleByCategory = map[intentions.Category]Rule{
	intentions.CategoryOptimize:  RuleConstDeclarations,
	intentions.CategoryModernize: RuleModernSyntax,
	intentions.CategoryEnhance:   RuleStatementReflow,
	intentions.CategoryFix:       RuleStrictNullChecks,
	intentions.CategorySecure:    RuleOptionalChaining,
}

// keywords for tokens that are not in the catalog
var ruleKeywords = map[Rule][]string{
	RuleConstDeclarations: {"optimize", "performance"},
	RuleModernSyntax:      {"modernize"},
	RuleStatementReflow:   {"readability", "enhance"},
	RuleStrictNullChecks:  {"fix", "bug"},
	RuleOptionalChaining:  {"secure", "security"},
}

var (
	varKeyword      = regexp.MustCompile(`\bvar\s+`)
	functionDecl    = regexp.MustCompile(`function\s+(\w+)\s*\(([^)]*)\)\s*\{`)
	singleQuoteJoin = regexp.MustCompile(`'([^'\n]*)'\s*\+\s*([\w.]+)\s*\+\s*'([^'\n]*)'`)
	doubleQuoteJoin = regexp.MustCompile(`"([^"\n]*)"\s*\+\s*([\w.]+)\s*\+\s*"([^"\n]*)"`)
	nullComparison  = regexp.MustCompile(`\s*(!==?|===?)\s*null\b`)
	bracketAccess   = regexp.MustCompile(`(\w+)\[(\w+)\]`)
)

// NoOpMarker starts the comment line the mock prepends when no rule changed the source.
const NoOpMarker = "// Harmonized with intentions: "

// MockAdapter is the deterministic, network-free adapter. It never fails.
type MockAdapter struct {
	catalog *intentions.Catalog
}

// NewMockAdapter creates a mock adapter that resolves intentions against catalog.
func NewMockAdapter(catalog *intentions.Catalog) *MockAdapter {
	if catalog == nil {
		catalog = intentions.Default()
	}
	return &MockAdapter{catalog: catalog}
}

// Complete parses the prompt and harmonizes the embedded source.
func (m *MockAdapter) Complete(_ context.Context, prompt string) (string, error) {
	parsed, ok := ParsePrompt(prompt)
	if !ok {
		return "", nil
	}
	return m.Harmonize(parsed.Code, parsed.Intentions), nil
}

// Harmonize applies the matching rules. When nothing changed it prepends a
// comment naming the requested intentions so a processed no-op is visible.
func (m *MockAdapter) Harmonize(code string, requested []string) string {
	if code == "" {
		return code
	}
	out := m.ApplyRules(code, requested)
	if out == code {
		return NoOpMarker + strings.Join(requested, ", ") + "\n" + code
	}
	return out
}

// ApplyRules runs every matched rule in fixed order without the no-op marker.
func (m *MockAdapter) ApplyRules(code string, requested []string) string {
	active := m.MatchRules(requested)
	for _, r := range ruleOrder {
		if active[r] {
			code = applyRule(r, code)
		}
	}
	return code
}

// MatchRules maps requested intentions to rules. Catalog entries match by
// category; anything else falls back to keyword containment.
func (m *MockAdapter) MatchRules(requested []string) map[Rule]bool {
	active := make(map[Rule]bool)
	for _, token := range requested {
		if it, ok := m.catalog.Resolve(token); ok {
			if r, ok := ruleByCategory[it.Category]; ok {
				active[r] = true
			}
			continue
		}
		lower := strings.ToLower(token)
		for r, words := range ruleKeywords {
			for _, w := range words {
				if strings.Contains(lower, w) {
					active[r] = true
				}
			}
		}
	}
	return active
}

// IsNoOp reports whether output is source unchanged, with or without the
// no-op marker line.
func IsNoOp(source, output string) bool {
	if output == source {
		return true
	}
	if !strings.HasPrefix(output, NoOpMarker) {
		return false
	}
	_, rest, found := strings.Cut(output, "\n")
	return found && rest == source
}

func applyRule(r Rule, code string) string {
	switch r {
	case RuleConstDeclarations:
		return varKeyword.ReplaceAllString(code, "const ")
	case RuleModernSyntax:
		code = functionDecl.ReplaceAllString(code, "const ${1} = (${2}) => {")
		code = joinToTemplate(singleQuoteJoin, code)
		return joinToTemplate(doubleQuoteJoin, code)
	case RuleStatementReflow:
		return reflowStatements(code)
	case RuleStrictNullChecks:
		return nullComparison.ReplaceAllStringFunc(code, strictNull)
	case RuleOptionalChaining:
		return bracketAccess.ReplaceAllString(code, "${1}?.[${2}]")
	}
	return code
}

func joinToTemplate(re *regexp.Regexp, code string) string {
	return re.ReplaceAllStringFunc(code, func(match string) string {
		sub := re.FindStringSubmatch(match)
		return "`" + sub[1] + "${" + sub[2] + "}" + sub[3] + "`"
	})
}

func strictNull(match string) string {
	op := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(match), "null"))
	switch op {
	case "!=":
		return " !== null"
	case "==":
		return " === null"
	}
	return match
}

// reflowStatements moves the statement after a semicolon onto its own
// indented line. A semicolon already followed by a newline, a closing brace
// or the end of input is left alone.
func reflowStatements(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for i := 0; i < len(code); i++ {
		b.WriteByte(code[i])
		if code[i] != ';' {
			continue
		}
		j := i + 1
		newline := false
		for j < len(code) && isSpace(code[j]) {
			if code[j] == '\n' {
				newline = true
			}
			j++
		}
		if newline || j == len(code) || code[j] == '}' {
			continue
		}
		b.WriteString("\n  ")
		i = j - 1
	}
	return b.String()
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
