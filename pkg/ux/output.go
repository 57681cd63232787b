// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders human-facing CLI output.
//
// Output is styled with lipgloss when it goes to a terminal and plain
// otherwise, so piping `kinship crawl` into a file or another program yields
// text without escape codes.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // headings
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text
	ColorWarning     = lipgloss.Color("#F4D03F")
	ColorError       = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Label:   lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Value:   lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorTealBright),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
)

// IsTerminal reports whether w is a terminal. Setting NO_COLOR disables
// styling everywhere.
func IsTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes styled or plain lines to w.
type Printer struct {
	w      io.Writer
	styled bool
}

// NewPrinter styles output only when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styled: IsTerminal(w)}
}

// NewPlainPrinter never styles output.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Styled reports whether the printer emits escape codes.
func (p *Printer) Styled() bool {
	return p.styled
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// Title prints a heading.
func (p *Printer) Title(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(Styles.Title, fmt.Sprintf(format, args...)))
}

// Field prints an indented "label: value" line with the label padded to width.
func (p *Printer) Field(label string, width int, format string, args ...any) {
	padded := fmt.Sprintf("%-*s", width, label+":")
	fmt.Fprintf(p.w, "  %s %s\n", p.render(Styles.Label, padded), p.render(Styles.Value, fmt.Sprintf(format, args...)))
}

// Success prints a line with a check mark.
func (p *Printer) Success(format string, args ...any) {
	p.status(IconSuccess, Styles.Success, format, args...)
}

// Warning prints a line with a warning sign.
func (p *Printer) Warning(format string, args ...any) {
	p.status(IconWarning, Styles.Warning, format, args...)
}

// Error prints a line with a cross.
func (p *Printer) Error(format string, args ...any) {
	p.status(IconError, Styles.Error, format, args...)
}

// Muted prints secondary text.
func (p *Printer) Muted(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(Styles.Muted, fmt.Sprintf(format, args...)))
}

// Blank prints an empty line.
func (p *Printer) Blank() {
	fmt.Fprintln(p.w)
}

func (p *Printer) status(icon Icon, s lipgloss.Style, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if !p.styled {
		fmt.Fprintf(p.w, "%s %s\n", icon, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", s.Render(string(icon)), s.Render(text))
}
