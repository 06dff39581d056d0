package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/resqtap/resqtap/internal/app"
)

// FavoritesCommand returns the CLI command for bookmarked entries
func FavoritesCommand() *cli.Command {
	return &cli.Command{
		Name:        "favorites",
		Usage:       "Manage bookmarked emergency entries",
		Description: "List or toggle the emergency entries bookmarked for quick access",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List bookmarked entries",
				Action: favoritesListAction,
			},
			{
				Name:        "toggle",
				Usage:       "Toggle a bookmark",
				Description: "Add the entry if it is not bookmarked, remove it if it is",
				ArgsUsage:   "<entry-id>",
				Action:      favoritesToggleAction,
			},
		},
		Action: favoritesListAction,
	}
}

func favoritesListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	ids := application.Favorites.All()
	if len(ids) == 0 {
		dimColor.Println("No bookmarks yet. Use 'resqtap favorites toggle <entry-id>' to add one.")
		return nil
	}

	headerColor.Printf("Bookmarked entries (%d)\n", len(ids))
	t := newTable()
	t.AppendHeader(table.Row{"Entry"})
	for _, id := range ids {
		t.AppendRow(table.Row{id})
	}
	t.Render()

	return nil
}

func favoritesToggleAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("missing entry id: usage: resqtap favorites toggle <entry-id>")
	}

	nowFavorite, err := application.Favorites.Toggle(c.Context, id)
	if err != nil {
		return fmt.Errorf("toggling favorite: %w", err)
	}

	if nowFavorite {
		successColor.Printf("Bookmarked %q\n", id)
	} else {
		warnColor.Printf("Removed bookmark %q\n", id)
	}
	return nil
}
