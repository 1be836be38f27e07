package report

import "github.com/charmbracelet/lipgloss"

// Theme defines the styles used for console output. Styles only wrap
// text; they never change it, so uncoloured output is byte-identical
// modulo escape codes.
type Theme struct {
	Name    string
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Tag     lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Warning lipgloss.Style
}

// DefaultTheme returns a vibrant color theme.
func DefaultTheme() Theme {
	return Theme{
		Name:    "default",
		Pass:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),  // green
		Fail:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true), // red
		Tag:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")),             // blue
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")),            // gray
		Bold:    lipgloss.NewStyle().Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // orange
	}
}

// OrcaTheme returns a muted, professional theme.
func OrcaTheme() Theme {
	return Theme{
		Name:    "orca",
		Pass:    lipgloss.NewStyle().Foreground(lipgloss.Color("108")), // sage green
		Fail:    lipgloss.NewStyle().Foreground(lipgloss.Color("167")), // muted red
		Tag:     lipgloss.NewStyle().Foreground(lipgloss.Color("75")),  // pale blue
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Bold:    lipgloss.NewStyle().Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("179")), // muted gold
	}
}

// MonoTheme returns a theme with no styling at all.
func MonoTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		Name:    "mono",
		Pass:    plain,
		Fail:    plain,
		Tag:     plain,
		Muted:   plain,
		Bold:    plain,
		Warning: plain,
	}
}

// ThemeByName returns a theme by name, defaulting to DefaultTheme.
func ThemeByName(name string) Theme {
	switch name {
	case "orca":
		return OrcaTheme()
	case "mono":
		return MonoTheme()
	default:
		return DefaultTheme()
	}
}
