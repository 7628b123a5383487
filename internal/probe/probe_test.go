package probe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/twintype/internal/provider"
)

func TestFilterTargets(t *testing.T) {
	infos := []*target.Info{
		{TargetID: "tab-1", Type: "page", URL: "https://chatgpt.com/c/abc"},
		{TargetID: "tab-2", Type: "page", URL: "https://example.com"},
		{TargetID: "tab-3", Type: "service_worker", URL: "https://claude.ai/sw.js"},
		{TargetID: "tab-4", Type: "page", URL: "https://gemini.google.com/app"},
	}

	got := FilterTargets(infos)
	if len(got) != 2 {
		t.Fatalf("FilterTargets() len = %d, want 2", len(got))
	}
	if got[0].ID != "tab-1" || got[0].Provider != provider.ChatGPT {
		t.Fatalf("first target = %+v, want tab-1 chatgpt", got[0])
	}
	if got[1].ID != "tab-4" || got[1].Provider != provider.Gemini {
		t.Fatalf("second target = %+v, want tab-4 gemini", got[1])
	}
}

func TestScriptEmbedsSelectors(t *testing.T) {
	prof, _ := provider.NewRegistry().Profile(provider.ChatGPT)
	script, err := Script(prof)
	if err != nil {
		t.Fatalf("Script() error = %v", err)
	}
	if !strings.Contains(script, `"#prompt-textarea"`) {
		t.Fatalf("Script() missing composer selector")
	}
	if !strings.Contains(script, `button[data-testid=\"send-button\"]`) {
		t.Fatalf("Script() missing escaped send selector")
	}
}

func TestProbeAllLogsAndCollects(t *testing.T) {
	var logs bytes.Buffer
	p := &Prober{Logger: slog.New(slog.NewTextHandler(&logs, nil))}

	targets := []Target{
		{ID: "tab-1", URL: "https://chatgpt.com/", Provider: provider.ChatGPT},
		{ID: "tab-2", URL: "https://claude.ai/new", Provider: provider.Claude},
	}
	run := func(_ context.Context, tg Target, script string) (Match, error) {
		if tg.ID == "tab-2" {
			return Match{}, errors.New("target closed")
		}
		return Match{URL: tg.URL, ComposerSelector: "#prompt-textarea", ComposerVisible: true, SendSelector: "button"}, nil
	}

	reports := p.probeAll(context.Background(), targets, run)
	if len(reports) != 2 {
		t.Fatalf("probeAll() len = %d, want 2", len(reports))
	}
	if !reports[0].Ready() {
		t.Fatalf("reports[0].Ready() = false, want true")
	}
	if reports[1].Ready() || reports[1].Err == nil {
		t.Fatalf("reports[1] = %+v, want error", reports[1])
	}
	out := logs.String()
	if !strings.Contains(out, "probe complete") || !strings.Contains(out, "probe failed") {
		t.Fatalf("logs missing lifecycle lines:\n%s", out)
	}
}

func TestWriteReports(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReports(&buf, nil); err != nil || !strings.Contains(buf.String(), "no provider tabs") {
		t.Fatalf("WriteReports(nil) = %q, %v", buf.String(), err)
	}

	buf.Reset()
	reports := []Report{
		{Target: Target{ID: "t1", Provider: provider.Gemini}, Match: Match{ComposerSelector: "rich-textarea", ComposerVisible: true}},
		{Target: Target{ID: "t2", Provider: provider.Claude}, Match: Match{}},
	}
	if err := WriteReports(&buf, reports); err != nil {
		t.Fatalf("WriteReports() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], " ready ") || !strings.Contains(lines[1], "not ready") {
		t.Fatalf("WriteReports() = %q", buf.String())
	}
}
