package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/resqtap/resqtap/internal/app"
	"github.com/resqtap/resqtap/internal/profile"
)

// ProfileCommand returns the CLI command for the health profile
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:        "profile",
		Usage:       "Manage the personal health profile",
		Description: "Show or update the health profile kept on this device and synced to your account",
		Subcommands: []*cli.Command{
			{
				Name:        "show",
				Usage:       "Show the stored profile",
				Description: "Display the health profile stored on this device",
				Action:      profileShowAction,
			},
			{
				Name:        "set",
				Usage:       "Update profile fields",
				Description: "Update one or more profile fields; unspecified fields keep their value",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "blood-type", Usage: "Blood type, e.g. A+ or 0-"},
					&cli.Float64Flag{Name: "height", Usage: "Height in the configured units"},
					&cli.Float64Flag{Name: "weight", Usage: "Weight in the configured units"},
					&cli.StringFlag{Name: "units", Usage: "Unit system: metric or imperial"},
					&cli.StringSliceFlag{Name: "allergy", Usage: "Allergy entry, repeatable (replaces the stored list)"},
					&cli.StringSliceFlag{Name: "condition", Usage: "Medical condition, repeatable (replaces the stored list)"},
					&cli.StringFlag{Name: "medications", Usage: "Free-form medications note"},
					&cli.StringSliceFlag{Name: "contact", Usage: "Emergency contact as 'Name: Phone', repeatable (replaces the stored list)"},
				},
				Action: profileSetAction,
			},
			{
				Name:        "clear",
				Usage:       "Clear the stored profile",
				Description: "Reset the profile to its empty state",
				Action:      profileClearAction,
			},
		},
		Action: profileShowAction,
	}
}

func profileShowAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	p := application.Profile.Get(c.Context)
	if p.IsEmpty() {
		dimColor.Println("No profile stored yet. Use 'resqtap profile set' to create one.")
		return nil
	}

	headerColor.Println("Health Profile")

	t := newTable()
	t.AppendRow(table.Row{"Blood type", valueOrDash(p.BloodType)})
	t.AppendRow(table.Row{"Height", floatOrDash(p.Height)})
	t.AppendRow(table.Row{"Weight", floatOrDash(p.Weight)})
	t.AppendRow(table.Row{"Units", valueOrDash(p.Units)})
	t.AppendRow(table.Row{"Allergies", listOrDash(p.Allergies)})
	t.AppendRow(table.Row{"Conditions", listOrDash(p.Conditions)})
	t.AppendRow(table.Row{"Medications", valueOrDash(p.Medications)})
	t.AppendRow(table.Row{"Emergency contacts", listOrDash(p.EmergencyContacts)})
	if !p.UpdatedAt.IsZero() {
		t.AppendRow(table.Row{"Updated", p.UpdatedAt.Local().Format("2006-01-02 15:04")})
	}
	t.Render()

	for _, contact := range p.EmergencyContacts {
		if phone := profile.CleanPhone(profile.ContactPhone(contact)); phone != "" {
			dimColor.Printf("  dial: %s\n", phone)
		}
	}

	return nil
}

func profileSetAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	p := application.Profile.Get(c.Context)

	if c.IsSet("blood-type") {
		p.BloodType = strings.ToUpper(c.String("blood-type"))
	}
	if c.IsSet("height") {
		h := c.Float64("height")
		p.Height = &h
	}
	if c.IsSet("weight") {
		w := c.Float64("weight")
		p.Weight = &w
	}
	if c.IsSet("units") {
		units := strings.ToLower(c.String("units"))
		if units != profile.UnitsMetric && units != profile.UnitsImperial {
			return fmt.Errorf("invalid units %q: expected %s or %s", units, profile.UnitsMetric, profile.UnitsImperial)
		}
		p.Units = units
	}
	if c.IsSet("allergy") {
		p.Allergies = c.StringSlice("allergy")
	}
	if c.IsSet("condition") {
		p.Conditions = c.StringSlice("condition")
	}
	if c.IsSet("medications") {
		p.Medications = c.String("medications")
	}
	if c.IsSet("contact") {
		p.EmergencyContacts = c.StringSlice("contact")
	}

	saved, err := application.Profile.Save(c.Context, p)
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	successColor.Printf("Profile saved (updated %s)\n", saved.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

func profileClearAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if _, err := application.Profile.Save(c.Context, profile.Profile{}); err != nil {
		return fmt.Errorf("clearing profile: %w", err)
	}

	successColor.Println("Profile cleared")
	return nil
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func listOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func floatOrDash(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
