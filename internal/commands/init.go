package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/resqtap/resqtap/internal/config"
	"github.com/resqtap/resqtap/internal/database"
)

const defaultEnvFile = `# ResQTap configuration
# RESQTAP_API_URL=https://api.resqtap.example
# RESQTAP_LOG_LEVEL=info
# RESQTAP_SYNC_ENABLED=true
# RESQTAP_TRAINING_HISTORY_LIMIT=100
`

// InitCommand returns the CLI command for initializing ResQTap
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize or update the ResQTap environment",
		Description: "Sets up the configuration directory and local database. " +
			"Use this for first-time setup or to migrate the schema after an upgrade.",
		Action: func(c *cli.Context) error {
			headerColor.Println("Initializing ResQTap")

			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get user home directory: %w", err)
			}

			configDir := filepath.Join(homeDir, ".resqtap")
			fmt.Printf("Configuration directory: %s\n", configDir)

			if err := os.MkdirAll(configDir, 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			configFilePath := filepath.Join(configDir, ".env")
			if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
				if err := os.WriteFile(configFilePath, []byte(defaultEnvFile), 0644); err != nil {
					warnColor.Printf("Failed to write default configuration: %v\n", err)
					// Continue anyway, defaults work without the file
				}
			}

			cfg, err := config.LoadFromEnv(configDir, configFilePath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			fmt.Println("Initializing database...")
			if err := database.InitDB(cfg); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}

			successColor.Println("ResQTap initialized successfully")
			fmt.Printf("Configuration file: %s\n", configFilePath)
			fmt.Printf("Database location: %s\n", cfg.Database.Path)
			fmt.Printf("Log file location: %s\n", cfg.Logging.Output)

			return nil
		},
	}
}
