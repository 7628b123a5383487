package types

// EligibleTab is a browser tab whose URL belongs to a supported provider.
// It is derived on demand and never persisted.
type EligibleTab struct {
	ID       TabID  `json:"id"`
	WindowID int    `json:"windowId"`
	Provider string `json:"provider"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Active   bool   `json:"active"`
}

// FindTab returns the tab with the given id.
func FindTab(tabs []EligibleTab, id TabID) (EligibleTab, bool) {
	for _, t := range tabs {
		if t.ID == id {
			return t, true
		}
	}
	return EligibleTab{}, false
}
