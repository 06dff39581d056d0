package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/resqtap/resqtap/internal/app"
	"github.com/resqtap/resqtap/internal/config"
	"github.com/resqtap/resqtap/internal/sync"
)

// SyncCommand returns the CLI command for syncing data to the server
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:        "sync",
		Usage:       "Sync local data with the ResQTap server",
		Description: "Push queued changes and pull the profile, favorites, and training history from your account",
		Subcommands: []*cli.Command{
			{
				Name:        "account",
				Usage:       "Manage server account connection",
				Description: "Link or unlink this device with your ResQTap account",
				Subcommands: []*cli.Command{
					{
						Name:        "link",
						Usage:       "Link to your account",
						Description: "Store the personal access token from the web interface",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "token",
								Usage:    "Personal access token from the web interface",
								Required: true,
							},
						},
						Action: linkAccountAction,
					},
					{
						Name:        "unlink",
						Usage:       "Unlink from your account",
						Description: "Remove the stored credential; local data stays on the device",
						Action:      unlinkAccountAction,
					},
					{
						Name:   "status",
						Usage:  "Check account connection status",
						Action: accountStatusAction,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the pending sync queue",
				Action: syncStatusAction,
			},
			{
				Name:  "config",
				Usage: "Configure sync settings",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "server",
						Usage: "Server URL for syncing",
					},
					&cli.BoolFlag{
						Name:  "enabled",
						Usage: "Enable or disable syncing",
					},
				},
				Action: syncConfigAction,
			},
		},
		Action: syncAction,
	}
}

// syncAction runs one sync cycle in the foreground
func syncAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if !application.Auth.IsLoggedIn(c.Context) {
		warnColor.Println("Not signed in. Use 'resqtap sync account link --token <token>' first.")
		return nil
	}

	result, err := application.Sync.Sync(c.Context, sync.TriggerManual)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if result.Skipped {
		warnColor.Println("Sync skipped (offline or already running)")
		return nil
	}

	successColor.Printf("Sync complete: %d delivered, %d dropped, %d still queued\n",
		result.Delivered, result.Dropped, result.Remaining)
	if result.QueueError != nil {
		errorColor.Printf("  %v\n", result.QueueError)
	}
	for _, pullErr := range result.PullErrors {
		errorColor.Printf("  pull: %v\n", pullErr)
	}
	return nil
}

func syncStatusAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	pending := application.Sync.PendingMutations(c.Context)
	if len(pending) == 0 {
		successColor.Println("Sync queue is empty")
		return nil
	}

	headerColor.Printf("Pending mutations (%d)\n", len(pending))
	t := newTable()
	t.AppendHeader(table.Row{"Kind", "Queued", "Attempts"})
	for _, m := range pending {
		t.AppendRow(table.Row{
			string(m.Kind),
			m.QueuedAt.Local().Format("2006-01-02 15:04:05"),
			m.Attempts,
		})
	}
	t.Render()
	return nil
}

func syncConfigAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	cfg := application.Config
	changed := false

	if c.IsSet("server") {
		cfg.Server.URL = c.String("server")
		changed = true
	}
	if c.IsSet("enabled") {
		cfg.Sync.Enabled = c.Bool("enabled")
		changed = true
	}

	if !changed {
		t := newTable()
		t.AppendRow(table.Row{"Server", valueOrDash(cfg.Server.URL)})
		t.AppendRow(table.Row{"Enabled", cfg.Sync.Enabled})
		t.Render()
		return nil
	}

	if err := config.SaveSyncSettings(c.Context, cfg, application.Settings); err != nil {
		return fmt.Errorf("saving sync settings: %w", err)
	}
	application.Sync.SetEnabled(cfg.Sync.Enabled)
	successColor.Println("Sync settings saved")
	return nil
}

func linkAccountAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if err := application.Auth.SetToken(c.Context, c.String("token")); err != nil {
		return fmt.Errorf("linking account: %w", err)
	}

	successColor.Println("Account linked, background sync enabled")
	return nil
}

func unlinkAccountAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if err := application.Auth.Logout(c.Context); err != nil {
		return fmt.Errorf("unlinking account: %w", err)
	}

	successColor.Println("Account unlinked, local data kept on this device")
	return nil
}

func accountStatusAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if application.Auth.IsLoggedIn(c.Context) {
		successColor.Println("Signed in")
	} else {
		warnColor.Println("Not signed in")
	}
	return nil
}
