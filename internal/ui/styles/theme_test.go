// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestNewTheme_Background(t *testing.T) {
	defer lipgloss.SetHasDarkBackground(lipgloss.HasDarkBackground())

	dark := NewTheme("Dark")
	assert.Equal(t, "dark", dark.Name)
	assert.True(t, dark.IsDark)

	light := NewTheme("light")
	assert.False(t, light.IsDark)

	auto := NewTheme("whatever")
	assert.Equal(t, "auto", auto.Name)
	assert.Equal(t, lipgloss.HasDarkBackground(), auto.IsDark)
}

func TestGlamourStyle(t *testing.T) {
	tests := []struct {
		isDark  bool
		profile termenv.Profile
		want    string
	}{
		{true, termenv.TrueColor, "dark"},
		{false, termenv.ANSI256, "light"},
		{true, termenv.Ascii, "notty"},
	}
	for _, tt := range tests {
		th := &Theme{IsDark: tt.isDark, ColorProfile: tt.profile}
		assert.Equal(t, tt.want, th.GlamourStyle())
	}
}
