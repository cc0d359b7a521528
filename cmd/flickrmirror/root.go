package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"flickrmirror/pkg/auth"
	"flickrmirror/pkg/config"
	"flickrmirror/pkg/logger"
	"flickrmirror/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flickrmirror [user-id]",
	Short: "Mirror a Flickr photo collection to a local directory",
	Long: `flickrmirror copies every photo of a Flickr account to a local directory.

For each photo it stores the original file (<id>.<format>) and a JSON sidecar
(<id>.json) with title, description, dates, tags, location and comments.

Features:
  - Idempotent: files already on disk are never fetched again
  - Courtesy delay between remote calls
  - Cool-down and a single retry when Flickr answers 429
  - Backoff on catalog page failures with resumable checkpoints
  - Credentials kept in the system keychain or an encrypted file`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.Output = io.Discard
		}
		if cmd.Name() != "version" && cmd.Name() != "help" && !useTUI {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.flickrmirror.yaml or ~/.config/flickrmirror/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send a desktop notification when the run ends")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show log output and one line per item")

	rootCmd.SetVersionTemplate(`flickrmirror {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags that were set explicitly
func globalFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if cmd.Flags().Changed("notifications") {
		flags["notifications"] = notifications
	}
	if quiet {
		flags["quiet"] = true
	}
	return flags
}

// loadConfig layers the configuration and fills missing credentials from
// the named stored account, or the default one when account is empty.
func loadConfig(flags map[string]interface{}, account string) (*config.Config, *auth.Account, error) {
	cfg, err := config.LoadUnvalidated(configFile, flags)
	if err != nil {
		return nil, nil, err
	}

	acc, err := storedAccount(account)
	switch {
	case err == nil:
		acc.Apply(cfg)
	case account != "":
		return nil, nil, fmt.Errorf("account %q: %w", account, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, acc, nil
}

func storedAccount(name string) (*auth.Account, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return nil, err
	}
	if name != "" {
		return manager.Retrieve(name)
	}
	return manager.RetrieveDefault()
}

// initLogging routes log output so it does not fight with the progress display.
// A non-nil panel receives JSON records for the dashboard instead of the terminal.
func initLogging(cfg *config.Config, panel io.Writer) error {
	switch {
	case panel != nil:
		lc := cfg.Logging
		lc.Format = "json"
		l, err := logger.New(&lc, panel)
		if err != nil {
			return err
		}
		logger.SetLogger(l)
		return nil
	case verbose:
		return logger.Initialize(&cfg.Logging)
	default:
		lc := cfg.Logging
		if lc.File == "" && logLevel == "" {
			lc.Level = "error"
		}
		l, err := logger.New(&lc, os.Stderr)
		if err != nil {
			return err
		}
		logger.SetLogger(l)
		return nil
	}
}
