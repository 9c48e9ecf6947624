package helpers

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/bizmatters/code-harmonizer/internal/gateway"
	"github.com/bizmatters/code-harmonizer/internal/harmonization"
	"github.com/bizmatters/code-harmonizer/internal/kvstore"
	"github.com/bizmatters/code-harmonizer/internal/llm"
	"github.com/bizmatters/code-harmonizer/internal/session"
)

// Scenario is a source text, the intentions to apply and the expected
// output of the mock adapter
type Scenario struct {
	Name       string
	Source     string
	Intentions []string
	Expected   string
}

// Default scenarios
var Scenarios = []Scenario{
	{
		Name:       "var becomes const",
		Source:     "var x = 1;",
		Intentions: []string{"optimize-performance"},
		Expected:   "const x = 1;",
	},
	{
		Name:       "loose null check becomes strict",
		Source:     "if (a != null) { b = a; }",
		Intentions: []string{"fix-bugs"},
		Expected:   "if (a !== null) { b = a; }",
	},
	{
		Name:       "function becomes arrow",
		Source:     "function add(a, b) { return a + b; }",
		Intentions: []string{"modernize-syntax"},
		Expected:   "const add = (a, b) => { return a + b; }",
	},
}

// TestServer is a running API over one workspace
type TestServer struct {
	*httptest.Server
	Workspace *session.Workspace
}

// NewTestServer starts the full HTTP API on backend with the mock adapter
func NewTestServer(t *testing.T, backend kvstore.Backend) *TestServer {
	t.Helper()

	adapter := llm.NewMockAdapter(nil)
	pipeline := harmonization.NewPipeline(adapter)
	workspace := session.NewWorkspace(context.Background(), pipeline, backend, nil)
	router, err := gateway.NewRouter(workspace, backend, adapter, nil)
	if err != nil {
		t.Fatalf("Failed to build router: %v", err)
	}

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &TestServer{Server: server, Workspace: workspace}
}
