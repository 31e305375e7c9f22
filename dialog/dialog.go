// Package dialog prompts the user for credentials and confirmations during
// interactive operations, with a terminal implementation and a scriptable
// fake for tests.
package dialog

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// Prompter asks the user questions. Library code takes a Prompter so callers
// decide whether prompting is interactive, scripted, or disabled.
type Prompter interface {
	// Password asks for a secret, input hidden.
	Password(title string) (string, error)

	// Confirm asks a yes/no question.
	Confirm(title string) (bool, error)
}

// Terminal prompts on the controlling terminal.
type Terminal struct{}

// NewTerminal returns a terminal-backed prompter.
func NewTerminal() *Terminal {
	return &Terminal{}
}

// Password shows a hidden-input prompt.
func (t *Terminal) Password(title string) (string, error) {
	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&value),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("password prompt: %w", err)
	}
	return value, nil
}

// Confirm shows a yes/no prompt.
func (t *Terminal) Confirm(title string) (bool, error) {
	var value bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Value(&value),
		),
	)
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirm prompt: %w", err)
	}
	return value, nil
}

// None is a prompter that refuses every question. For non-interactive use.
type None struct{}

// Password always fails.
func (None) Password(title string) (string, error) {
	return "", fmt.Errorf("no prompter available for %q", title)
}

// Confirm always answers no.
func (None) Confirm(title string) (bool, error) {
	return false, nil
}
