package tunnel

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	headerStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	localOwnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	peerOwnerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	disconnectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

const lineSeparator = " | "

// formatLine renders "<owner> | <content>" cut to the terminal width.
func formatLine(m *Message, cols int) string {
	style := peerOwnerStyle
	if m.Owner() == LocalMarker {
		style = localOwnerStyle
	}
	room := cols - runewidth.StringWidth(m.Owner()) - len(lineSeparator)
	content := printable(m.Content())
	if room <= 0 {
		content = ""
	} else {
		content = runewidth.Truncate(content, room, "")
	}
	return style.Render(m.Owner()) + lineSeparator + content
}

func formatHeader(peer string, cols int) string {
	return headerStyle.Render(runewidth.Truncate(printable(peer), max(cols, 0), ""))
}

// printable drops control characters so peer text cannot move the cursor.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
