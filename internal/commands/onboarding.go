package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/resqtap/resqtap/internal/app"
)

// OnboardingCommand returns the CLI command for first-run state
func OnboardingCommand() *cli.Command {
	return &cli.Command{
		Name:  "onboarding",
		Usage: "Inspect or change the first-run state",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show onboarding state",
				Action: onboardingStatusAction,
			},
			{
				Name:   "complete",
				Usage:  "Mark onboarding as finished",
				Action: onboardingCompleteAction,
			},
			{
				Name:      "step",
				Usage:     "Save the current onboarding step",
				ArgsUsage: "<step>",
				Action:    onboardingStepAction,
			},
			{
				Name:   "reset",
				Usage:  "Reset onboarding so it runs again",
				Action: onboardingResetAction,
			},
		},
		Action: onboardingStatusAction,
	}
}

func onboardingStatusAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	t := newTable()
	t.AppendRow(table.Row{"Completed", application.Onboarding.Completed(c.Context)})
	t.AppendRow(table.Row{"Step", application.Onboarding.Step(c.Context)})
	t.Render()
	return nil
}

func onboardingCompleteAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if err := application.Onboarding.SetCompleted(c.Context, true); err != nil {
		return fmt.Errorf("marking onboarding complete: %w", err)
	}
	successColor.Println("Onboarding marked complete")
	return nil
}

func onboardingStepAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	step := c.Args().First()
	if step == "" {
		return fmt.Errorf("missing step: usage: resqtap onboarding step <step>")
	}
	var n int
	if _, err := fmt.Sscanf(step, "%d", &n); err != nil || n < 0 {
		return fmt.Errorf("invalid step %q: expected a non-negative number", step)
	}

	if err := application.Onboarding.SetStep(c.Context, n); err != nil {
		return fmt.Errorf("saving onboarding step: %w", err)
	}
	successColor.Printf("Onboarding step saved: %d\n", n)
	return nil
}

func onboardingResetAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if err := application.Onboarding.Reset(c.Context); err != nil {
		return fmt.Errorf("resetting onboarding: %w", err)
	}
	successColor.Println("Onboarding reset")
	return nil
}
