package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/shell/orchestrator"
	"github.com/artpar/autodeploy/internal/shell/session"
)

// ErrNotInteractive is returned when a prompt is needed but stdin is not a
// terminal.
var ErrNotInteractive = errors.New("an interactive terminal is required")

// confirmApply shows the plan and asks before anything is applied.
func (c *CLI) confirmApply(r *session.Renderer) orchestrator.ConfirmFunc {
	return func(ctx context.Context, plan domain.Plan) (bool, error) {
		fmt.Fprintln(c.out, r.Plan(plan))
		if !c.interactive() {
			return false, fmt.Errorf("%w to confirm the apply, pass --force to skip confirmation", ErrNotInteractive)
		}
		return promptConfirm(ctx, "Do you want to proceed with deployment?")
	}
}

func promptConfirm(ctx context.Context, title string) (bool, error) {
	confirmed := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative("Yes").
			Negative("No").
			Value(&confirmed),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}

// promptFields asks for every credential field in one form. Secrets are
// masked while typed.
func promptFields(ctx context.Context, p domain.Provider, fields []credentialField) (map[string]string, error) {
	values := make([]string, len(fields))
	inputs := make([]huh.Field, 0, len(fields))
	for i, f := range fields {
		values[i] = f.Default
		input := huh.NewInput().
			Title(f.Title).
			Description(f.Help).
			Value(&values[i])
		if f.Secret {
			input = input.EchoMode(huh.EchoModePassword)
		}
		if !f.Optional {
			title := f.Title
			input = input.Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("%s is required", title)
				}
				return nil
			})
		}
		inputs = append(inputs, input)
	}

	form := huh.NewForm(huh.NewGroup(inputs...).
		Title(p.DisplayName() + " credentials").
		Description(setupHint(p)))
	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("prompt failed: %w", err)
	}

	out := make(map[string]string, len(fields))
	for i, f := range fields {
		out[f.Key] = strings.TrimSpace(values[i])
	}
	return out, nil
}
