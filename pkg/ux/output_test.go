// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf), "buffers are never terminals")

	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f), "regular files are not terminals")
}

func TestIsTerminal_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, IsTerminal(os.Stdout))
}

func TestPrinter_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	require.False(t, p.Styled())

	p.Title("Root family %d", 7)
	p.Field("People", 8, "%d", 12)
	p.Success("done")
	p.Warning("%d failures", 2)
	p.Error("bad")
	p.Muted("quiet")
	p.Blank()

	want := "Root family 7\n" +
		"  People:  12\n" +
		"✓ done\n" +
		"⚠ 2 failures\n" +
		"✗ bad\n" +
		"quiet\n" +
		"\n"
	assert.Equal(t, want, buf.String())
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestPrinter_Styled(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{w: &buf, styled: true}
	p.Title("heading")
	assert.Contains(t, buf.String(), "heading")
}

func TestNewPlainPrinter(t *testing.T) {
	assert.False(t, NewPlainPrinter(os.Stdout).Styled())
}

func TestSpinner_DisabledOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "crawling")
	s.Start()
	assert.False(t, s.Running())
	s.UpdateMessage("still crawling")
	s.Stop()
	assert.Empty(t, buf.String())
}

func TestSpinner_StartStop(t *testing.T) {
	var buf bytes.Buffer
	s := &Spinner{w: &buf, enabled: true, message: "crawling"}

	s.Start()
	s.Start()
	assert.True(t, s.Running())
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
	assert.Contains(t, buf.String(), "\r\033[K")
}
