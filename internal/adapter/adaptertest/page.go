// Package adaptertest provides an in-memory Page for exercising composer
// strategies without a browser.
package adaptertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgnsrekt/twintype/internal/adapter"
	"github.com/dgnsrekt/twintype/internal/types"
)

// Node is a fake DOM node. Matches lists the selectors it answers to.
type Node struct {
	adapter.Element
	Matches []string
	Value   string
}

// Enter records a synthetic Enter press.
type Enter struct {
	Ref       string
	Modifiers []string
}

// Page is a fake tab. The zero value is not usable; call New.
type Page struct {
	mu sync.Mutex

	nodes    []*Node
	alive    bool
	failures map[string]error

	calls      []string
	clicked    []string
	entered    []Enter
	attached   []string
	richEvents [][]string
}

// New creates a live page holding nodes.
func New(nodes ...*Node) *Page {
	return &Page{nodes: nodes, alive: true, failures: map[string]error{}}
}

// Textarea returns a visible textarea in the lower viewport.
func Textarea(ref string, matches ...string) *Node {
	return &Node{Element: visible(ref, "textarea", false), Matches: matches}
}

// Editable returns a visible contenteditable div in the lower viewport.
func Editable(ref string, matches ...string) *Node {
	return &Node{Element: visible(ref, "div", true), Matches: matches}
}

// Button returns a visible enabled button.
func Button(ref, ariaLabel string, matches ...string) *Node {
	el := visible(ref, "button", false)
	el.Width, el.Height = 32, 32
	el.AriaLabel = ariaLabel
	return &Node{Element: el, Matches: matches}
}

func visible(ref, tag string, editable bool) adapter.Element {
	return adapter.Element{
		Ref:            ref,
		Tag:            tag,
		Editable:       editable,
		Top:            700,
		Left:           100,
		Width:          600,
		Height:         60,
		ViewportHeight: 900,
		Display:        "block",
		Visibility:     "visible",
		Opacity:        "1",
	}
}

// SetAlive toggles whether the page bundle answers at all.
func (p *Page) SetAlive(alive bool) {
	p.mu.Lock()
	p.alive = alive
	p.mu.Unlock()
}

// Fail makes every call to fn return err.
func (p *Page) Fail(fn string, err error) {
	p.mu.Lock()
	p.failures[fn] = err
	p.mu.Unlock()
}

// SetNodes replaces the page content.
func (p *Page) SetNodes(nodes ...*Node) {
	p.mu.Lock()
	p.nodes = nodes
	p.mu.Unlock()
}

// Value returns a node's text.
func (p *Page) Value(ref string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := p.find(ref); n != nil {
		return n.Value
	}
	return ""
}

// Calls returns the primitive names invoked so far.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Count returns how many times fn was invoked.
func (p *Page) Count(fn string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == fn {
			n++
		}
	}
	return n
}

// Clicked returns the refs of clicked elements.
func (p *Page) Clicked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicked...)
}

// Entered returns the synthetic Enter presses.
func (p *Page) Entered() []Enter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Enter(nil), p.entered...)
}

// Attached returns the refs the input listener was attached to, in order.
func (p *Page) Attached() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.attached...)
}

// RichEvents returns the event lists used by rich text writes.
func (p *Page) RichEvents() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]string(nil), p.richEvents...)
}

// Call implements adapter.Page.
func (p *Page) Call(ctx context.Context, fn string, out any, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.calls = append(p.calls, fn)
	if !p.alive {
		p.mu.Unlock()
		return fmt.Errorf("page bundle missing: %w", types.ErrNoReceiver)
	}
	if err := p.failures[fn]; err != nil {
		p.mu.Unlock()
		return err
	}
	result, err := p.dispatch(fn, args)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	if out == nil || result == nil {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *Page) dispatch(fn string, args []any) (any, error) {
	switch fn {
	case "alive":
		return true, nil
	case "query", "buttons":
		return p.matching(argString(args, 0)), nil
	case "editables":
		sels, _ := args[0].([]string)
		seen := map[string]bool{}
		out := []adapter.Element{}
		for _, sel := range sels {
			for _, el := range p.matching(sel) {
				if !seen[el.Ref] {
					seen[el.Ref] = true
					out = append(out, el)
				}
			}
		}
		return out, nil
	case "setNativeValue", "setRichText":
		n := p.find(argString(args, 0))
		if n == nil {
			return nil, fmt.Errorf("stale element reference")
		}
		n.Value = argString(args, 1)
		if fn == "setRichText" {
			events, _ := args[2].([]string)
			p.richEvents = append(p.richEvents, events)
		}
		return nil, nil
	case "caretToEnd":
		return nil, nil
	case "getText":
		n := p.find(argString(args, 0))
		if n == nil {
			return "", nil
		}
		return n.Value, nil
	case "click":
		p.clicked = append(p.clicked, argString(args, 0))
		return nil, nil
	case "pressEnter":
		mods, _ := args[1].([]string)
		p.entered = append(p.entered, Enter{Ref: argString(args, 0), Modifiers: mods})
		return nil, nil
	case "attachInput":
		p.attached = append(p.attached, argString(args, 0))
		return nil, nil
	}
	return nil, fmt.Errorf("unknown primitive %q", fn)
}

func (p *Page) matching(sel string) []adapter.Element {
	out := []adapter.Element{}
	for _, n := range p.nodes {
		for _, m := range n.Matches {
			if m == sel {
				out = append(out, n.Element)
				break
			}
		}
	}
	return out
}

func (p *Page) find(ref string) *Node {
	for _, n := range p.nodes {
		if n.Ref == ref {
			return n
		}
	}
	return nil
}

func argString(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}
