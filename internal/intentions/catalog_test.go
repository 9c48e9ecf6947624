package intentions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	t.Run("six intentions in display order", func(t *testing.T) {
		assert.Equal(t, []string{
			"optimize-performance",
			"translate-language",
			"enhance-security",
			"modernize-syntax",
			"fix-bugs",
			"improve-readability",
		}, c.IDs())
	})

	t.Run("ids are unique", func(t *testing.T) {
		seen := map[string]bool{}
		for _, it := range c.List() {
			assert.False(t, seen[it.ID], "duplicate id %s", it.ID)
			seen[it.ID] = true
		}
	})

	t.Run("list returns a copy", func(t *testing.T) {
		items := c.List()
		items[0].Name = "mutated"
		it, ok := c.Lookup("optimize-performance")
		require.True(t, ok)
		assert.Equal(t, "Optimize Performance", it.Name)
	})
}

func TestCatalog_Resolve(t *testing.T) {
	c := Default()

	tests := []struct {
		name    string
		token   string
		wantID  string
		wantHit bool
	}{
		{name: "exact_id", token: "fix-bugs", wantID: "fix-bugs", wantHit: true},
		{name: "display_name", token: "Enhance Security", wantID: "enhance-security", wantHit: true},
		{name: "step_name_any_case", token: "readability enhancement", wantID: "improve-readability", wantHit: true},
		{name: "padded", token: "  modernize-syntax ", wantID: "modernize-syntax", wantHit: true},
		{name: "unknown", token: "make-it-fast", wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, ok := c.Resolve(tt.token)
			assert.Equal(t, tt.wantHit, ok)
			if tt.wantHit {
				assert.Equal(t, tt.wantID, it.ID)
			}
		})
	}
}

func TestCatalog_ValidateAndStepName(t *testing.T) {
	c := Default()

	assert.Empty(t, c.Validate([]string{"fix-bugs", "optimize-performance"}))
	assert.Equal(t, []string{"nope"}, c.Validate([]string{"fix-bugs", "nope"}))

	assert.Equal(t, "Bug Detection & Fixes", c.StepName("fix-bugs"))
	assert.Equal(t, "Unknown Intention", c.StepName("nope"))
}

func TestCatalog_Grouped(t *testing.T) {
	groups := Default().Grouped()
	require.Len(t, groups, 6)

	assert.Equal(t, CategoryOptimize, groups[0].Category)
	assert.Equal(t, "Performance & Optimization", groups[0].Label)
	assert.Equal(t, CategoryEnhance, groups[5].Category)
	assert.Equal(t, "improve-readability", groups[5].Intentions[0].ID)
}

func TestNew_SkipsDuplicateIDs(t *testing.T) {
	c := New([]Intention{
		{ID: "a", Name: "First", Category: CategoryFix},
		{ID: "a", Name: "Second", Category: CategoryFix},
	})
	require.Len(t, c.List(), 1)
	it, _ := c.Lookup("a")
	assert.Equal(t, "First", it.Name)
	assert.Equal(t, "First", it.StepName)
}
