package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"flickrmirror/pkg/config"
	"flickrmirror/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage flickrmirror configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (FLICKRMIRROR_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to .flickrmirror.yaml unless --config names another path.`,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after layering all sources.
Secrets are masked.`,
	RunE: runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# flickrmirror configuration
#
# Every value can also be set with an environment variable prefixed with
# FLICKRMIRROR_, for example FLICKRMIRROR_API_KEY or FLICKRMIRROR_DESTINATION_DIRECTORY.

flickr:
  # Application key and secret from https://www.flickr.com/services/apps/
  api_key: ""
  api_secret: ""

  # OAuth access token. Prefer 'flickrmirror auth login' over storing it here.
  oauth_token: ""
  oauth_token_secret: ""

  # NSID whose photos are mirrored; "me" is the owner of the token
  user_id: "me"

  endpoint: "https://api.flickr.com/services/rest/"

output:
  destination_directory: "downloads"
  dir_permissions: "0755"
  file_permissions: "0644"

mirror:
  # Photos per catalog page, at most 500
  per_page: 500

  # Pause after every answered remote call
  courtesy_delay: 500ms

  # Wait after HTTP 429 before the single retry
  rate_limit_cooldown: 5m

  download_timeout: 5m

page_retry:
  initial_delay: 30s
  max_delay: 5m
  multiplier: 2.0
  # 0 retries a failing page forever
  max_attempts: 10

logging:
  # debug, info, warn, error
  level: "info"
  # text, json
  format: "text"
  # Optional JSON log file
  file: ""

ui:
  notifications: false
  tui: false
  quiet: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".flickrmirror.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Add your API key and secret, or run 'flickrmirror auth login'")
	fmt.Fprintln(ui.Output, "2. Run 'flickrmirror config validate'")
	fmt.Fprintln(ui.Output, "3. Start mirroring with 'flickrmirror mirror'")
	return nil
}

// maskedConfig returns a copy of cfg that is safe to print
func maskedConfig(cfg *config.Config) config.Config {
	out := *cfg
	mask := func(s string) string {
		switch {
		case s == "":
			return ""
		case len(s) > 8:
			return s[:4] + "..." + s[len(s)-4:]
		default:
			return "***"
		}
	}
	out.Flickr.APISecret = mask(out.Flickr.APISecret)
	out.Flickr.OAuthToken = mask(out.Flickr.OAuthToken)
	out.Flickr.OAuthTokenSecret = mask(out.Flickr.OAuthTokenSecret)
	return out
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadUnvalidated(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}

	display := maskedConfig(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none found)"
	}
	fmt.Fprintln(ui.Output, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(ui.Output, "1. Command line flags")
	fmt.Fprintln(ui.Output, "2. Environment variables (FLICKRMIRROR_*)")
	fmt.Fprintf(ui.Output, "3. Configuration file: %s\n", source)
	fmt.Fprintln(ui.Output, "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadUnvalidated(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}

	var warnings []string
	if !cfg.HasToken() {
		acc, err := storedAccount("")
		switch {
		case err == nil:
			acc.Apply(cfg)
			ui.PrintInfo("Using stored account", acc.Username)
		default:
			warnings = append(warnings, "no OAuth token configured, only public photos will be mirrored")
		}
	}

	if err := cfg.Validate(); err != nil {
		ui.PrintError("Configuration has errors:")
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, e := range joined.Unwrap() {
				fmt.Fprintf(ui.Output, "  - %s\n", e)
			}
		} else {
			fmt.Fprintf(ui.Output, "  - %s\n", err)
		}
		return errors.New("invalid configuration")
	}

	if cfg.PageRetry.MaxAttempts == 0 {
		warnings = append(warnings, "page_retry max_attempts is 0, a failing page is retried forever")
	}
	for _, w := range warnings {
		ui.PrintWarning(w)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  User: %s\n", cfg.Flickr.UserID)
	fmt.Fprintf(ui.Output, "  Destination: %s\n", cfg.Output.DestinationDirectory)
	fmt.Fprintf(ui.Output, "  Courtesy delay: %s\n", cfg.Mirror.CourtesyDelay)
	fmt.Fprintf(ui.Output, "  Rate limit cool-down: %s\n", cfg.Mirror.RateLimitCooldown)
	fmt.Fprintf(ui.Output, "  Page retry: %d attempts, %s to %s\n", cfg.PageRetry.MaxAttempts, cfg.PageRetry.InitialDelay, cfg.PageRetry.MaxDelay)
	fmt.Fprintf(ui.Output, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
