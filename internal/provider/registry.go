package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var validModifiers = map[string]bool{"alt": true, "ctrl": true, "meta": true, "shift": true}

// Override replaces selected profile fields. Nil fields keep the default.
type Override struct {
	ComposerSelectors []string      `yaml:"composer_selectors"`
	SendSelectors     []string      `yaml:"send_selectors"`
	FallbackSelectors []string      `yaml:"fallback_selectors"`
	Plausibility      *Plausibility `yaml:"plausibility"`
	Fallback          *FallbackRank `yaml:"fallback_rank"`
	LowerFraction     *float64      `yaml:"lower_fraction"`
	RichTextEvents    []string      `yaml:"rich_text_events"`
	IconHints         []string      `yaml:"icon_hints"`
	SendModifiers     []string      `yaml:"send_modifiers"`
}

// OverrideFile is the top-level YAML document for profile overrides.
type OverrideFile struct {
	Providers map[string]Override `yaml:"providers"`
}

// Registry holds the live profile of every provider.
type Registry struct {
	mu       sync.RWMutex
	profiles map[Name]Profile
}

// NewRegistry creates a registry seeded with the built-in profiles.
func NewRegistry() *Registry {
	return &Registry{profiles: DefaultProfiles()}
}

// Profile returns a copy of the provider's current profile.
func (r *Registry) Profile(n Name) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[n]
	if !ok {
		return Profile{}, false
	}
	return p.Clone(), true
}

// Profiles returns copies of all profiles sorted by name.
func (r *Registry) Profiles() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Apply resets every profile to its default and layers the overrides on top.
// Nothing changes when the overrides are invalid.
func (r *Registry) Apply(file OverrideFile) error {
	next := DefaultProfiles()
	for key, o := range file.Providers {
		name, ok := Parse(key)
		if !ok {
			return fmt.Errorf("provider overrides: unknown provider %q", key)
		}
		p := next[name]
		if err := applyOverride(&p, o); err != nil {
			return fmt.Errorf("provider overrides: %s: %w", name, err)
		}
		next[name] = p
	}

	r.mu.Lock()
	r.profiles = next
	r.mu.Unlock()
	return nil
}

// LoadFile reads a YAML override file and applies it. A missing file resets
// the registry to the defaults.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("provider overrides file not found, using defaults", "path", path)
		return r.Apply(OverrideFile{})
	}
	if err != nil {
		return fmt.Errorf("provider overrides: %w", err)
	}
	var file OverrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("provider overrides: %w", err)
	}
	if err := r.Apply(file); err != nil {
		return err
	}
	slog.Info("provider overrides loaded", "path", path, "providers", len(file.Providers))
	return nil
}

func applyOverride(p *Profile, o Override) error {
	if o.ComposerSelectors != nil {
		if len(o.ComposerSelectors) == 0 {
			return errors.New("composer_selectors must not be empty")
		}
		p.ComposerSelectors = cloneStrings(o.ComposerSelectors)
	}
	if o.SendSelectors != nil {
		p.SendSelectors = cloneStrings(o.SendSelectors)
	}
	if o.FallbackSelectors != nil {
		p.FallbackSelectors = cloneStrings(o.FallbackSelectors)
	}
	if o.Plausibility != nil {
		switch *o.Plausibility {
		case PlausibleAny, PlausibleComposerLike:
			p.Plausibility = *o.Plausibility
		default:
			return fmt.Errorf("invalid plausibility %q", *o.Plausibility)
		}
	}
	if o.Fallback != nil {
		switch *o.Fallback {
		case RankLargest, RankFirstLower, RankFirst:
			p.Fallback = *o.Fallback
		default:
			return fmt.Errorf("invalid fallback_rank %q", *o.Fallback)
		}
	}
	if o.LowerFraction != nil {
		if *o.LowerFraction < 0 || *o.LowerFraction >= 1 {
			return fmt.Errorf("lower_fraction %v out of range [0,1)", *o.LowerFraction)
		}
		p.LowerFraction = *o.LowerFraction
	}
	if o.RichTextEvents != nil {
		p.RichTextEvents = cloneStrings(o.RichTextEvents)
	}
	if o.IconHints != nil {
		p.IconHints = cloneStrings(o.IconHints)
	}
	if o.SendModifiers != nil {
		mods := make([]string, 0, len(o.SendModifiers))
		for _, m := range o.SendModifiers {
			m = strings.ToLower(strings.TrimSpace(m))
			if !validModifiers[m] {
				return fmt.Errorf("invalid send modifier %q", m)
			}
			mods = append(mods, m)
		}
		p.SendModifiers = mods
	}
	return nil
}
