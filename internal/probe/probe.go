// Package probe checks, without installing anything, which of a provider's
// composer and send selectors match in each open provider tab. It is the
// first thing to run when a provider ships a new layout.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/twintype/internal/provider"
)

const defaultTabTimeout = 10 * time.Second

// Target is one provider page found in the browser.
type Target struct {
	ID       target.ID
	URL      string
	Provider provider.Name
}

// Match is what the page reported for one target.
type Match struct {
	URL              string `json:"url"`
	ComposerSelector string `json:"composerSelector"`
	ComposerTag      string `json:"composerTag"`
	ComposerVisible  bool   `json:"composerVisible"`
	SendSelector     string `json:"sendSelector"`
	SendDisabled     bool   `json:"sendDisabled"`
	Editables        int    `json:"editables"`
}

// Report is the outcome for one target.
type Report struct {
	Target Target
	Match  Match
	Err    error
}

// Ready reports whether a composer selector matched a visible element.
func (r Report) Ready() bool {
	return r.Err == nil && r.Match.ComposerSelector != "" && r.Match.ComposerVisible
}

// Runner evaluates the probe script in one target.
type Runner func(ctx context.Context, t Target, script string) (Match, error)

// Prober enumerates provider tabs and probes each.
type Prober struct {
	Registry   *provider.Registry
	TabTimeout time.Duration
	Logger     *slog.Logger
}

// Run connects to the browser at cdpURL and probes every provider tab.
func (p *Prober) Run(ctx context.Context, cdpURL string) ([]Report, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, cdpURL)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	infos, err := chromedp.Targets(browserCtx)
	if err != nil {
		return nil, fmt.Errorf("enumerate targets: %w", err)
	}

	targets := FilterTargets(infos)
	if len(targets) == 0 {
		p.logger().Warn("probe found no provider tabs", "cdp_url", cdpURL)
		return nil, nil
	}
	return p.probeAll(ctx, targets, cdpRunner(allocCtx, p.tabTimeout())), nil
}

// FilterTargets keeps page targets whose URL belongs to a provider.
func FilterTargets(infos []*target.Info) []Target {
	out := make([]Target, 0, len(infos))
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		name, ok := provider.Classify(info.URL)
		if !ok {
			continue
		}
		out = append(out, Target{ID: info.TargetID, URL: info.URL, Provider: name})
	}
	return out
}

func (p *Prober) probeAll(ctx context.Context, targets []Target, run Runner) []Report {
	logger := p.logger()
	reports := make([]Report, 0, len(targets))
	for _, t := range targets {
		prof, ok := p.registry().Profile(t.Provider)
		if !ok {
			reports = append(reports, Report{Target: t, Err: fmt.Errorf("no profile for %s", t.Provider)})
			continue
		}
		script, err := Script(prof)
		if err != nil {
			reports = append(reports, Report{Target: t, Err: err})
			continue
		}

		match, err := run(ctx, t, script)
		r := Report{Target: t, Match: match, Err: err}
		if err != nil {
			logger.Warn("probe failed", "target_id", t.ID, "provider", t.Provider, "error", err)
		} else {
			logger.Info("probe complete",
				"target_id", t.ID,
				"provider", t.Provider,
				"composer", match.ComposerSelector,
				"send", match.SendSelector,
				"ready", r.Ready(),
			)
		}
		reports = append(reports, r)
	}
	return reports
}

func (p *Prober) registry() *provider.Registry {
	if p.Registry == nil {
		p.Registry = provider.NewRegistry()
	}
	return p.Registry
}

func (p *Prober) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Prober) tabTimeout() time.Duration {
	if p.TabTimeout > 0 {
		return p.TabTimeout
	}
	return defaultTabTimeout
}

func cdpRunner(allocCtx context.Context, timeout time.Duration) Runner {
	return func(_ context.Context, t Target, script string) (Match, error) {
		tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(t.ID))
		defer tabCancel()

		runCtx, runCancel := context.WithTimeout(tabCtx, timeout)
		defer runCancel()

		var m Match
		if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &m)); err != nil {
			return Match{}, fmt.Errorf("evaluate probe: %w", err)
		}
		return m, nil
	}
}

// Script builds the read-only probe expression for a profile.
func Script(prof provider.Profile) (string, error) {
	composer, err := json.Marshal(prof.ComposerSelectors)
	if err != nil {
		return "", err
	}
	send, err := json.Marshal(prof.SendSelectors)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(probeJS, composer, send), nil
}

const probeJS = `(function (composer, send) {
  function first(list) {
    for (const sel of list) {
      let el = null;
      try { el = document.querySelector(sel); } catch (e) { continue; }
      if (el) return { sel: sel, el: el };
    }
    return null;
  }
  function visible(el) {
    const r = el.getBoundingClientRect();
    const s = getComputedStyle(el);
    return r.width > 0 && r.height > 0 && s.visibility !== "hidden" && s.display !== "none";
  }
  const c = first(composer);
  const b = first(send);
  return {
    url: String(location.href || ""),
    composerSelector: c ? c.sel : "",
    composerTag: c ? c.el.tagName.toLowerCase() : "",
    composerVisible: c ? visible(c.el) : false,
    sendSelector: b ? b.sel : "",
    sendDisabled: b ? !!b.el.disabled || b.el.getAttribute("aria-disabled") === "true" : false,
    editables: document.querySelectorAll('textarea, [contenteditable="true"], [role="textbox"]').length
  };
})(%s, %s);`

// WriteReports prints one line per report.
func WriteReports(w io.Writer, reports []Report) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "probe: no provider tabs")
		return err
	}
	for _, r := range reports {
		var err error
		switch {
		case r.Err != nil:
			_, err = fmt.Fprintf(w, "%-8s %s error: %v\n", r.Target.Provider, r.Target.ID, r.Err)
		default:
			state := "not ready"
			if r.Ready() {
				state = "ready"
			}
			_, err = fmt.Fprintf(w, "%-8s %s %s composer=%q send=%q editables=%d\n",
				r.Target.Provider, r.Target.ID, state, r.Match.ComposerSelector, r.Match.SendSelector, r.Match.Editables)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
