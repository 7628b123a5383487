package adapter

import (
	"context"
	"strings"
)

// Page runs a page-bundle primitive inside one tab. out receives the JSON
// result and may be nil.
type Page interface {
	Call(ctx context.Context, fn string, out any, args ...any) error
}

// Page-bundle primitives.
const (
	fnQuery          = "query"
	fnEditables      = "editables"
	fnButtons        = "buttons"
	fnSetNativeValue = "setNativeValue"
	fnSetRichText    = "setRichText"
	fnCaretToEnd     = "caretToEnd"
	fnGetText        = "getText"
	fnClick          = "click"
	fnPressEnter     = "pressEnter"
	FnAttachInput    = "attachInput"
	FnAlive          = "alive"
)

// Element describes a DOM node as seen by the page bundle. Ref is an opaque
// handle that stays valid while the node is alive in the current document.
type Element struct {
	Ref            string   `json:"ref"`
	Tag            string   `json:"tag"`
	Editable       bool     `json:"editable"`
	Top            float64  `json:"top"`
	Left           float64  `json:"left"`
	Width          float64  `json:"width"`
	Height         float64  `json:"height"`
	ViewportHeight float64  `json:"viewportHeight"`
	Display        string   `json:"display"`
	Visibility     string   `json:"visibility"`
	Opacity        string   `json:"opacity"`
	Classes        []string `json:"classes,omitempty"`
	Placeholder    bool     `json:"placeholder"`
	AriaLabel      string   `json:"ariaLabel,omitempty"`
	Disabled       bool     `json:"disabled"`
	HasSVG         bool     `json:"hasSvg"`
	Markup         string   `json:"markup,omitempty"`
}

// Visible reports a non-empty box that is not hidden by computed style.
func (e Element) Visible() bool {
	return e.Width > 0 &&
		e.Height > 0 &&
		e.Display != "none" &&
		e.Visibility != "hidden" &&
		e.Opacity != "0"
}

// Native reports whether the element is a plain form input.
func (e Element) Native() bool {
	tag := strings.ToLower(e.Tag)
	return tag == "textarea" || tag == "input"
}

// HasClass reports whether class is present on the element.
func (e Element) HasClass(class string) bool {
	for _, c := range e.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// InLowerViewport reports whether the element's top edge sits below the
// given fraction of the viewport height.
func (e Element) InLowerViewport(fraction float64) bool {
	return e.Top > e.ViewportHeight*fraction
}

func (e Element) area() float64 { return e.Width * e.Height }
