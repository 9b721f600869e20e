package output

import "github.com/charmbracelet/lipgloss"

// Color constants using the ANSI 256-color palette.
const (
	// ColorPrimary is used for headers (bright blue).
	ColorPrimary = lipgloss.Color("39")

	// ColorSuccess is used for succeeded phases (green).
	ColorSuccess = lipgloss.Color("42")

	// ColorWarning is used for warnings (orange/yellow).
	ColorWarning = lipgloss.Color("214")

	// ColorDanger is used for failed or timed-out phases (red).
	ColorDanger = lipgloss.Color("196")

	// ColorMuted is used for secondary text (gray).
	ColorMuted = lipgloss.Color("245")
)

// Text styles shared by the styled formatters.
var (
	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// HeaderStyle is used for table column headers.
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorMuted)

	// SuccessStyle is used for positive status text.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// WarningStyle is used for warning text.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// ErrorStyle is used for failure text.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorDanger)

	// MutedStyle is used for less important text.
	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)
)
