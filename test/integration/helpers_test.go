//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

var env *Env

// Env holds shared state for all integration tests.
type Env struct {
	BaseURL string
	Client  *http.Client
	// Tabs is the eligible tab list discovered at startup.
	Tabs []eligibleTab
	// saved panel state restored in teardown
	savedText    string
	savedTargetA int
	savedTargetB int
	savedLive    bool
}

type eligibleTab struct {
	ID       int    `json:"id"`
	Provider string `json:"provider"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	WindowID int    `json:"windowId"`
}

type panelView struct {
	Text     string        `json:"text"`
	Length   int           `json:"length"`
	TargetA  int           `json:"targetA"`
	TargetB  int           `json:"targetB"`
	LiveSync bool          `json:"liveSync"`
	Theme    string        `json:"theme"`
	Tabs     []eligibleTab `json:"tabs"`
}

func (e *Env) discoverTabs() error {
	resp, err := e.Client.Get(e.BaseURL + "/api/v1/tabs")
	if err != nil {
		return fmt.Errorf("server not reachable at %s: %w", e.BaseURL, err)
	}
	defer resp.Body.Close()

	var listing struct {
		Tabs []eligibleTab `json:"tabs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return fmt.Errorf("decode tabs: %w", err)
	}
	e.Tabs = listing.Tabs
	return nil
}

func (e *Env) panelState() (panelView, error) {
	resp, err := e.Client.Get(e.BaseURL + "/api/v1/panel")
	if err != nil {
		return panelView{}, err
	}
	defer resp.Body.Close()
	var v panelView
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return panelView{}, fmt.Errorf("decode panel: %w", err)
	}
	return v, nil
}

func (e *Env) doJSON(method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.BaseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.Client.Do(req)
}

// restorePanel puts the buffer, targets and live sync back as found.
func restorePanel() {
	calls := []struct {
		path string
		body any
	}{
		{"/api/v1/panel/live-sync", map[string]any{"enabled": false}},
		{"/api/v1/panel/targets", map[string]any{"targetA": env.savedTargetA, "targetB": env.savedTargetB}},
		{"/api/v1/panel/text", map[string]any{"text": env.savedText}},
		{"/api/v1/panel/live-sync", map[string]any{"enabled": env.savedLive}},
	}
	for _, c := range calls {
		resp, err := env.doJSON(http.MethodPut, c.path, c.body)
		if err != nil {
			fmt.Fprintf(os.Stderr, "integration: teardown %s: %v\n", c.path, err)
			continue
		}
		resp.Body.Close()
	}
}

// requireTabs skips when fewer than n provider tabs are open.
func requireTabs(t *testing.T, n int) {
	t.Helper()
	if len(env.Tabs) < n {
		t.Skipf("need %d provider tabs, found %d", n, len(env.Tabs))
	}
}

func TestMain(m *testing.M) {
	baseURL := os.Getenv("TWINTYPE_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8190"
	}

	env = &Env{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}

	if err := env.discoverTabs(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "integration: %d provider tabs at %s\n", len(env.Tabs), env.BaseURL)

	v, err := env.panelState()
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration: read panel: %v\n", err)
		os.Exit(1)
	}
	env.savedText, env.savedTargetA, env.savedTargetB, env.savedLive = v.Text, v.TargetA, v.TargetB, v.LiveSync

	code := m.Run()
	restorePanel()
	os.Exit(code)
}

// --- HTTP helpers ---

func (e *Env) GET(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.Client.Get(e.BaseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (e *Env) PUT(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	return e.do(t, http.MethodPut, path, body)
}

func (e *Env) POST(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	return e.do(t, http.MethodPost, path, body)
}

func (e *Env) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	resp, err := e.doJSON(method, path, body)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// --- Assertion helpers ---

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, want, body)
	}
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func requireField[T comparable](t *testing.T, got, want T, name string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func tabPath(id int, suffix string) string {
	return fmt.Sprintf("/api/v1/tabs/%d/%s", id, suffix)
}
