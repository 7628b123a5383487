package provider

import (
	"regexp"
	"strings"
)

// Name identifies a supported AI chat provider.
type Name string

const (
	ChatGPT Name = "chatgpt"
	Gemini  Name = "gemini"
	Claude  Name = "claude"
)

// The patterns are disjoint, so a URL maps to at most one provider.
var urlPatterns = []struct {
	name Name
	re   *regexp.Regexp
}{
	{ChatGPT, regexp.MustCompile(`^https://chatgpt\.com/.*`)},
	{Gemini, regexp.MustCompile(`^https://gemini\.google\.com/.*`)},
	{Claude, regexp.MustCompile(`^https://claude\.ai/.*`)},
}

// Classify maps a tab URL to its provider.
func Classify(url string) (Name, bool) {
	if url == "" {
		return "", false
	}
	for _, p := range urlPatterns {
		if p.re.MatchString(url) {
			return p.name, true
		}
	}
	return "", false
}

// Names lists the supported providers in table order.
func Names() []Name {
	out := make([]Name, 0, len(urlPatterns))
	for _, p := range urlPatterns {
		out = append(out, p.name)
	}
	return out
}

// Parse accepts a provider name in any case.
func Parse(s string) (Name, bool) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range urlPatterns {
		if p.name == n {
			return n, true
		}
	}
	return "", false
}

// StartURL is the landing page used when opening a fresh provider tab.
func StartURL(n Name) string {
	switch n {
	case ChatGPT:
		return "https://chatgpt.com/"
	case Gemini:
		return "https://gemini.google.com/app"
	case Claude:
		return "https://claude.ai/new"
	}
	return ""
}
