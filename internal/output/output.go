// Package output provides styled terminal output helpers (success, error,
// item rendering) using lipgloss.
package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/branger/internal/models"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	checkedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Strikethrough(true)
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// OfflineBanner prints the offline notice shown above list output.
func OfflineBanner() {
	fmt.Println(bannerStyle.Render("You're offline. Changes will sync when reconnected."))
}

// RenderItem formats one checklist row.
func RenderItem(it models.ListItem) string {
	box := "[ ]"
	name := it.Name
	if it.Checked {
		box = "[x]"
		name = checkedStyle.Render(name)
	}
	line := fmt.Sprintf("%s %s", box, name)
	if it.Description != "" {
		line += subtleStyle.Render(" - " + it.Description)
	}
	if models.IsTempID(it.ID) {
		line += warningStyle.Render(" (pending sync)")
	}
	return line
}

// RenderItems formats the whole list in display order.
func RenderItems(items []models.ListItem) string {
	if len(items) == 0 {
		return subtleStyle.Render("This list is empty. Add items with `branger add`.")
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString(RenderItem(it))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
