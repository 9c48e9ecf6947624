// Command smoke runs end-to-end checks against a running harmonizer API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/bizmatters/code-harmonizer/internal/models"
)

const smokeTimeout = 30 * time.Second

type TestResult struct {
	TestName string
	Success  bool
	Error    error
	Details  string
}

type smoke struct {
	baseURL string
	client  *http.Client
}

func main() {
	baseURL := flag.String("url", envOr("HARMONIZER_URL", "http://localhost:8080"), "harmonizer API base URL")
	flag.Parse()

	s := &smoke{
		baseURL: strings.TrimSuffix(*baseURL, "/"),
		client:  &http.Client{Timeout: smokeTimeout},
	}

	log.Printf("Starting harmonizer smoke test against %s", s.baseURL)

	results := []TestResult{
		s.testHealth(),
		s.testNotReadyRejected(),
		s.testStreamedRun(),
		s.testAuditExport(),
		s.testRollback(),
	}

	if !printTestResults(results) {
		os.Exit(1)
	}
}

func (s *smoke) testHealth() TestResult {
	name := "Health and readiness"
	for _, path := range []string{"/health", "/ready"} {
		resp, err := s.client.Get(s.baseURL + path)
		if err != nil {
			return TestResult{TestName: name, Error: err, Details: "GET " + path}
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return TestResult{TestName: name, Error: fmt.Errorf("unexpected status code: %d", resp.StatusCode), Details: "GET " + path}
		}
	}
	return TestResult{TestName: name, Success: true, Details: "/health and /ready return 200"}
}

func (s *smoke) testNotReadyRejected() TestResult {
	name := "Run without intentions is rejected"
	if err := s.send(http.MethodDelete, "/api/session/intentions", nil, nil); err != nil {
		return TestResult{TestName: name, Error: err, Details: "Failed to clear selection"}
	}

	var resp models.ErrorResponse
	status, err := s.do(http.MethodPost, "/api/harmonize", nil, &resp)
	if err != nil {
		return TestResult{TestName: name, Error: err}
	}
	if status != http.StatusConflict || resp.Code != models.ErrCodeNotReady {
		return TestResult{TestName: name, Error: fmt.Errorf("got %d %s", status, resp.Code)}
	}
	return TestResult{TestName: name, Success: true, Details: resp.Error}
}

func (s *smoke) testStreamedRun() TestResult {
	name := "Streamed harmonization"
	if err := s.send(http.MethodPut, "/api/session/source", map[string]string{"sourceCode": "var total = 0;\nif (total != null) { log(total); }"}, nil); err != nil {
		return TestResult{TestName: name, Error: err, Details: "Failed to set source"}
	}
	if err := s.send(http.MethodPut, "/api/session/intentions", map[string][]string{"intentions": {"optimize-performance", "fix-bugs"}}, nil); err != nil {
		return TestResult{TestName: name, Error: err, Details: "Failed to select intentions"}
	}

	wsURL := "ws" + strings.TrimPrefix(s.baseURL, "http") + "/api/ws/harmonize"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return TestResult{TestName: name, Error: err, Details: "Failed to connect to progress stream"}
	}
	defer conn.Close()

	updates := 0
	deadline := time.Now().Add(smokeTimeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		var ev struct {
			EventType string          `json:"event_type"`
			Data      json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			return TestResult{TestName: name, Error: err, Details: fmt.Sprintf("stream ended after %d updates", updates)}
		}
		switch ev.EventType {
		case models.EventStepUpdate:
			updates++
		case models.EventCompleted:
			var result struct {
				HarmonizedCode string `json:"harmonizedCode"`
			}
			if err := json.Unmarshal(ev.Data, &result); err != nil {
				return TestResult{TestName: name, Error: err}
			}
			if !strings.Contains(result.HarmonizedCode, "const total") || !strings.Contains(result.HarmonizedCode, "!== null") {
				return TestResult{TestName: name, Error: fmt.Errorf("unexpected output %q", result.HarmonizedCode)}
			}
			return TestResult{TestName: name, Success: true, Details: fmt.Sprintf("%d progress updates before completion", updates)}
		default:
			return TestResult{TestName: name, Error: fmt.Errorf("unexpected event %s: %s", ev.EventType, ev.Data)}
		}
	}
}

func (s *smoke) testAuditExport() TestResult {
	name := "Audit export"
	for _, format := range []string{"json", "yaml"} {
		resp, err := s.client.Get(s.baseURL + "/api/audit/export?format=" + format)
		if err != nil {
			return TestResult{TestName: name, Error: err}
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return TestResult{TestName: name, Error: fmt.Errorf("unexpected status code: %d", resp.StatusCode), Details: format}
		}
		if !strings.Contains(resp.Header.Get("Content-Disposition"), "harmonization-audit-") {
			return TestResult{TestName: name, Error: fmt.Errorf("missing attachment filename"), Details: format}
		}
		if !bytes.Contains(body, []byte("exportTimestamp")) {
			return TestResult{TestName: name, Error: fmt.Errorf("export has no timestamp"), Details: format}
		}
	}
	return TestResult{TestName: name, Success: true, Details: "json and yaml exports downloaded"}
}

func (s *smoke) testRollback() TestResult {
	name := "Rollback"
	if err := s.send(http.MethodPost, "/api/audit/rollback", nil, nil); err != nil {
		return TestResult{TestName: name, Error: err}
	}
	status, err := s.do(http.MethodGet, "/api/audit", nil, nil)
	if err != nil {
		return TestResult{TestName: name, Error: err}
	}
	if status != http.StatusNotFound {
		return TestResult{TestName: name, Error: fmt.Errorf("audit still present: %d", status)}
	}
	return TestResult{TestName: name, Success: true, Details: "audit record cleared"}
}

// send is do that fails on any non-200 status
func (s *smoke) send(method, path string, body, out interface{}) error {
	status, err := s.do(method, path, body, out)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status code: %d", method, path, status)
	}
	return nil
}

func (s *smoke) do(method, path string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func printTestResults(results []TestResult) bool {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle("HARMONIZER SMOKE TEST RESULTS")
	tw.AppendHeader(table.Row{"Status", "Test", "Details", "Error"})

	successCount := 0
	for _, result := range results {
		status := "FAILED"
		if result.Success {
			status = "PASSED"
			successCount++
		}
		errText := ""
		if result.Error != nil {
			errText = result.Error.Error()
		}
		tw.AppendRow(table.Row{status, result.TestName, result.Details, errText})
	}
	tw.AppendFooter(table.Row{"", "SUMMARY", fmt.Sprintf("%d/%d tests passed", successCount, len(results)), ""})
	tw.Render()

	return successCount == len(results)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
