// Package adapter locates and drives a provider's chat composer through
// page-bundle primitives. Provider variants differ only in profile data.
package adapter

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/twintype/internal/provider"
	"github.com/dgnsrekt/twintype/internal/types"
)

// composerMinWidth rejects narrow editables such as inline rename fields.
const composerMinWidth = 100

var sendLabelHints = []string{"send", "submit"}

// ProfileSource resolves the live profile of a provider.
type ProfileSource interface {
	Profile(n provider.Name) (provider.Profile, bool)
}

// Adapter implements composer discovery, text writes, reads and send for one
// tab. It caches the last composer it found and holds no other state.
type Adapter struct {
	page     Page
	name     provider.Name
	profiles ProfileSource
	last     *Element
}

// New creates an adapter for a tab that belongs to the named provider.
func New(page Page, name provider.Name, profiles ProfileSource) *Adapter {
	return &Adapter{page: page, name: name, profiles: profiles}
}

// Provider returns the provider the adapter drives.
func (a *Adapter) Provider() provider.Name { return a.name }

// Last returns the composer found by the most recent discovery.
func (a *Adapter) Last() *Element { return a.last }

func (a *Adapter) profile() provider.Profile {
	if a.profiles != nil {
		if p, ok := a.profiles.Profile(a.name); ok {
			return p
		}
	}
	return provider.DefaultProfiles()[a.name]
}

// FindComposer runs the ordered locator strategies and returns the first
// plausible visible composer, or nil. Page errors count as "no match".
func (a *Adapter) FindComposer(ctx context.Context) *Element {
	p := a.profile()
	el := a.bySelectors(ctx, p)
	if el == nil {
		el = a.byHeuristic(ctx, p)
	}
	a.last = el
	return el
}

func (a *Adapter) bySelectors(ctx context.Context, p provider.Profile) *Element {
	for _, sel := range p.ComposerSelectors {
		var candidates []Element
		if err := a.page.Call(ctx, fnQuery, &candidates, sel); err != nil {
			slog.Debug("adapter selector query failed", "provider", a.name, "selector", sel, "error", err)
			continue
		}
		for i := range candidates {
			if candidates[i].Visible() && plausible(p, candidates[i]) {
				return &candidates[i]
			}
		}
	}
	return nil
}

func (a *Adapter) byHeuristic(ctx context.Context, p provider.Profile) *Element {
	if len(p.FallbackSelectors) == 0 {
		return nil
	}
	var all []Element
	if err := a.page.Call(ctx, fnEditables, &all, p.FallbackSelectors); err != nil {
		slog.Debug("adapter editable scan failed", "provider", a.name, "error", err)
		return nil
	}

	candidates := make([]Element, 0, len(all))
	for _, el := range all {
		if !el.Visible() || !plausible(p, el) {
			continue
		}
		if p.MinWidth > 0 && el.Width <= p.MinWidth {
			continue
		}
		if p.MinHeight > 0 && el.Height <= p.MinHeight {
			continue
		}
		candidates = append(candidates, el)
	}
	if len(candidates) == 0 {
		return nil
	}

	switch p.Fallback {
	case provider.RankLargest:
		var best *Element
		for i := range candidates {
			if !candidates[i].InLowerViewport(p.LowerFraction) {
				continue
			}
			if best == nil || candidates[i].area() > best.area() {
				best = &candidates[i]
			}
		}
		return best
	case provider.RankFirstLower:
		for i := range candidates {
			if candidates[i].InLowerViewport(p.LowerFraction) {
				return &candidates[i]
			}
		}
		return &candidates[0]
	default:
		return &candidates[0]
	}
}

func plausible(p provider.Profile, el Element) bool {
	switch p.Plausibility {
	case provider.PlausibleComposerLike:
		if el.Width < composerMinWidth {
			return false
		}
		return el.InLowerViewport(p.LowerFraction) || el.HasClass("ProseMirror") || el.Placeholder
	default:
		return true
	}
}

// SetText replaces the composer's content with text so that the provider's
// framework registers the change.
func (a *Adapter) SetText(ctx context.Context, text string) types.Result {
	el := a.FindComposer(ctx)
	if el == nil {
		slog.Debug("adapter composer not found for set text", "provider", a.name)
		return types.Result{OK: false, Error: types.ErrorComposerNotFound}
	}

	var err error
	if el.Native() {
		err = a.page.Call(ctx, fnSetNativeValue, nil, el.Ref, text)
	} else {
		err = a.page.Call(ctx, fnSetRichText, nil, el.Ref, text, a.profile().RichTextEvents)
	}
	if err != nil {
		slog.Warn("adapter set text failed", "provider", a.name, "error", err)
		return types.Result{OK: false, Error: err.Error()}
	}

	if err := a.page.Call(ctx, fnCaretToEnd, nil, el.Ref); err != nil {
		slog.Debug("adapter caret placement failed", "provider", a.name, "error", err)
	}
	return types.Result{OK: true}
}

// GetText reads the composer's current text. Empty when there is none.
func (a *Adapter) GetText(ctx context.Context) string {
	el := a.FindComposer(ctx)
	if el == nil {
		return ""
	}
	var text string
	if err := a.page.Call(ctx, fnGetText, &text, el.Ref); err != nil {
		slog.Debug("adapter get text failed", "provider", a.name, "error", err)
		return ""
	}
	return text
}

// Send clicks the provider's send control, falling back to a synthetic
// Enter keydown on the composer.
func (a *Adapter) Send(ctx context.Context) types.Result {
	el := a.FindComposer(ctx)
	if el == nil {
		slog.Debug("adapter composer not found for send", "provider", a.name)
		return types.Result{OK: false, Error: types.ErrorComposerNotFound}
	}

	p := a.profile()
	if btn := a.findSendButton(ctx, p); btn != nil {
		slog.Debug("adapter clicking send button", "provider", a.name, "aria_label", btn.AriaLabel)
		if err := a.page.Call(ctx, fnClick, nil, btn.Ref); err != nil {
			return types.Result{OK: false, Error: err.Error()}
		}
		return types.Result{OK: true}
	}

	slog.Debug("adapter no send button, pressing enter", "provider", a.name, "modifiers", p.SendModifiers)
	if err := a.page.Call(ctx, fnPressEnter, nil, el.Ref, p.SendModifiers); err != nil {
		return types.Result{OK: false, Error: err.Error()}
	}
	return types.Result{OK: true}
}

func (a *Adapter) findSendButton(ctx context.Context, p provider.Profile) *Element {
	for _, sel := range p.SendSelectors {
		if btn := a.firstButton(ctx, sel, func(Element) bool { return true }); btn != nil {
			return btn
		}
	}

	if p.SendLabelScan || len(p.IconHints) > 0 {
		btn := a.firstButton(ctx, "button", func(b Element) bool {
			if p.SendLabelScan && labelLooksLikeSend(b.AriaLabel) {
				return true
			}
			return b.HasSVG && markupHasHint(b.Markup, p.IconHints)
		})
		if btn != nil {
			return btn
		}
	}

	if p.FormIconButton {
		return a.firstButton(ctx, "form button", func(b Element) bool { return b.HasSVG })
	}
	return nil
}

func (a *Adapter) firstButton(ctx context.Context, selector string, match func(Element) bool) *Element {
	var buttons []Element
	if err := a.page.Call(ctx, fnButtons, &buttons, selector); err != nil {
		slog.Debug("adapter button query failed", "provider", a.name, "selector", selector, "error", err)
		return nil
	}
	for i := range buttons {
		if buttons[i].Visible() && !buttons[i].Disabled && match(buttons[i]) {
			return &buttons[i]
		}
	}
	return nil
}

func labelLooksLikeSend(label string) bool {
	label = strings.ToLower(label)
	for _, h := range sendLabelHints {
		if strings.Contains(label, h) {
			return true
		}
	}
	return false
}

func markupHasHint(markup string, hints []string) bool {
	markup = strings.ToLower(markup)
	for _, h := range hints {
		if h != "" && strings.Contains(markup, strings.ToLower(h)) {
			return true
		}
	}
	return false
}
