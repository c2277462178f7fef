// Package ui styles plain CLI output with lipgloss.
//
// The [Palette] colors titles, results and help text. [Palette.Badge] marks
// classifications the oracle was unsure about so they stand out in album listings.
//
// Styles degrade to plain text when output is not a terminal.
package ui
