package panel

// Theme is the panel's color scheme.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// ParseTheme maps a stored value to a theme; anything unknown is system.
func ParseTheme(s string) Theme {
	switch Theme(s) {
	case ThemeLight:
		return ThemeLight
	case ThemeDark:
		return ThemeDark
	}
	return ThemeSystem
}

// Next returns the theme that follows t in the cycle.
func (t Theme) Next() Theme {
	switch t {
	case ThemeSystem:
		return ThemeLight
	case ThemeLight:
		return ThemeDark
	}
	return ThemeSystem
}
