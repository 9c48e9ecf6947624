package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("var x = 1;", []string{"optimize-performance", "fix-bugs"}, []string{"Optimize Performance", "Fix Potential Issues"})

	assert.Contains(t, prompt, "based on the selected intentions: optimize-performance, fix-bugs.")
	assert.Contains(t, prompt, "Original code:\nvar x = 1;\n\nInstructions:\n")
	assert.Contains(t, prompt, "- Return only the transformed code, no explanations")
	assert.Contains(t, prompt, "Selected intentions: Optimize Performance, Fix Potential Issues")
}

func TestParsePrompt(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		ids        []string
		names      []string
		intentions []string
	}{
		{
			name:       "single line",
			code:       "var x = 1;",
			ids:        []string{"optimize-performance"},
			names:      []string{"Optimize Performance"},
			intentions: []string{"optimize-performance"},
		},
		{
			name:       "multi line with trailing newline",
			code:       "function f() {\n  return 1;\n}\n",
			ids:        []string{"modernize-syntax", "fix-bugs"},
			names:      []string{"Modernize Syntax", "Fix Potential Issues"},
			intentions: []string{"modernize-syntax", "fix-bugs"},
		},
		{
			name:       "source mentioning the instructions marker",
			code:       "// Original code:\n\n\nInstructions:\nlet a = 1;",
			ids:        []string{"fix-bugs"},
			names:      []string{"Fix Potential Issues"},
			intentions: []string{"fix-bugs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := ParsePrompt(BuildPrompt(tt.code, tt.ids, tt.names))
			require.True(t, ok)
			assert.Equal(t, tt.code, parsed.Code)
			assert.Equal(t, tt.intentions, parsed.Intentions)
		})
	}
}

func TestParsePrompt_NamesOnly(t *testing.T) {
	prompt := "Original code:\nlet y;\n\nInstructions:\n- do it\n\nSelected intentions: Fix Potential Issues, Improve Readability"

	parsed, ok := ParsePrompt(prompt)
	require.True(t, ok)
	assert.Equal(t, "let y;", parsed.Code)
	assert.Equal(t, []string{"Fix Potential Issues", "Improve Readability"}, parsed.Intentions)
}

func TestParsePrompt_Malformed(t *testing.T) {
	_, ok := ParsePrompt("no markers here")
	assert.False(t, ok)

	_, ok = ParsePrompt("Original code:\nlet x;")
	assert.False(t, ok)
}
