package provider

// Plausibility decides whether a visible candidate can be a composer.
type Plausibility string

const (
	// PlausibleAny accepts every visible candidate.
	PlausibleAny Plausibility = "any"
	// PlausibleComposerLike requires a wide element that sits in the lower
	// viewport, is a ProseMirror root, or carries a placeholder.
	PlausibleComposerLike Plausibility = "composer-like"
)

// FallbackRank picks one element from the heuristic editable scan.
type FallbackRank string

const (
	// RankLargest takes the largest candidate in the lower viewport.
	RankLargest FallbackRank = "largest"
	// RankFirstLower takes the first lower-viewport candidate, else the first.
	RankFirstLower FallbackRank = "first-lower"
	// RankFirst takes the first candidate.
	RankFirst FallbackRank = "first"
)

// Profile is the data that distinguishes one provider's adapter from another.
type Profile struct {
	Name              Name         `yaml:"-" json:"name"`
	ComposerSelectors []string     `yaml:"composer_selectors" json:"composer_selectors"`
	SendSelectors     []string     `yaml:"send_selectors" json:"send_selectors"`
	Plausibility      Plausibility `yaml:"plausibility" json:"plausibility"`
	FallbackSelectors []string     `yaml:"fallback_selectors" json:"fallback_selectors"`
	Fallback          FallbackRank `yaml:"fallback_rank" json:"fallback_rank"`
	LowerFraction     float64      `yaml:"lower_fraction" json:"lower_fraction"`
	MinWidth          float64      `yaml:"min_width" json:"min_width"`
	MinHeight         float64      `yaml:"min_height" json:"min_height"`
	RichTextEvents    []string     `yaml:"rich_text_events" json:"rich_text_events"`
	SendLabelScan     bool         `yaml:"send_label_scan" json:"send_label_scan"`
	IconHints         []string     `yaml:"icon_hints" json:"icon_hints"`
	FormIconButton    bool         `yaml:"form_icon_button" json:"form_icon_button"`
	SendModifiers     []string     `yaml:"send_modifiers" json:"send_modifiers"`
}

// Clone returns a deep copy so callers can't mutate registry state.
func (p Profile) Clone() Profile {
	out := p
	out.ComposerSelectors = cloneStrings(p.ComposerSelectors)
	out.SendSelectors = cloneStrings(p.SendSelectors)
	out.FallbackSelectors = cloneStrings(p.FallbackSelectors)
	out.RichTextEvents = cloneStrings(p.RichTextEvents)
	out.IconHints = cloneStrings(p.IconHints)
	out.SendModifiers = cloneStrings(p.SendModifiers)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// DefaultProfiles returns the built-in selector data for every provider.
func DefaultProfiles() map[Name]Profile {
	return map[Name]Profile{
		ChatGPT: {
			Name: ChatGPT,
			ComposerSelectors: []string{
				`#prompt-textarea`,
				`div[contenteditable="true"]#prompt-textarea`,
				`textarea[data-id="root"]`,
				`div[contenteditable="true"][data-placeholder*="Message"]`,
				`form textarea`,
				`div[contenteditable="true"][data-placeholder]`,
			},
			SendSelectors: []string{
				`button[data-testid="send-button"]`,
				`button[aria-label="Send prompt"]`,
				`button[aria-label="Send message"]`,
				`form button[type="submit"]`,
			},
			Plausibility:      PlausibleAny,
			FallbackSelectors: []string{`textarea`, `[contenteditable="true"]`},
			Fallback:          RankLargest,
			LowerFraction:     0.3,
			RichTextEvents:    []string{"input"},
			FormIconButton:    true,
		},
		Gemini: {
			Name: Gemini,
			ComposerSelectors: []string{
				`.ql-editor[contenteditable="true"]`,
				`div[contenteditable="true"].ql-editor`,
				`rich-textarea [contenteditable="true"]`,
				`div.input-area [contenteditable="true"]`,
				`div[aria-label*="prompt" i][contenteditable="true"]`,
				`div[contenteditable="true"][data-placeholder]`,
				`textarea[aria-label*="prompt" i]`,
				`.text-input-field textarea`,
				`div[contenteditable="true"][role="textbox"]`,
			},
			SendSelectors: []string{
				`button[aria-label*="Send" i]`,
				`button[aria-label*="Submit" i]`,
				`button.send-button`,
				`button[mattooltip*="Send" i]`,
				`.input-area button[aria-label]`,
			},
			Plausibility:      PlausibleAny,
			FallbackSelectors: []string{`[contenteditable="true"]`, `textarea`},
			Fallback:          RankFirstLower,
			LowerFraction:     0.4,
			MinWidth:          100,
			MinHeight:         20,
			RichTextEvents:    []string{"input", "text-change"},
			SendLabelScan:     true,
		},
		Claude: {
			Name: Claude,
			ComposerSelectors: []string{
				`div[contenteditable="true"].ProseMirror`,
				`div.ProseMirror[contenteditable="true"]`,
				`[data-placeholder][contenteditable="true"]`,
				`div[contenteditable="true"][aria-label*="Message" i]`,
				`div[contenteditable="true"][role="textbox"]`,
				`fieldset div[contenteditable="true"]`,
				`div[contenteditable="true"]`,
			},
			SendSelectors: []string{
				`button[aria-label*="Send" i]`,
				`button[aria-label*="Submit" i]`,
				`fieldset button[type="button"]`,
				`button.send-message-button`,
			},
			Plausibility:      PlausibleComposerLike,
			FallbackSelectors: []string{`[contenteditable="true"]`},
			Fallback:          RankFirst,
			LowerFraction:     0.4,
			RichTextEvents:    []string{"input", "beforeinput"},
			SendLabelScan:     true,
			IconHints:         []string{"arrow", "19v5"},
		},
	}
}
