package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"flickrmirror/pkg/checkpoint"
	"flickrmirror/pkg/flickr"
	"flickrmirror/pkg/logger"
	"flickrmirror/pkg/mirror"
	"flickrmirror/pkg/ratelimit"
	"flickrmirror/pkg/ui"
	"flickrmirror/pkg/ui/tui"
)

var (
	destination  string
	accountName  string
	maxAttempts  int
	resumeRun    bool
	forceRestart bool
	useTUI       bool
)

// mirrorCmd represents the mirror command
var mirrorCmd = &cobra.Command{
	Use:   "mirror [user-id]",
	Short: "Mirror the photos of a Flickr account",
	Long: `Walk the photo catalog of a Flickr account page by page and store every
original file and its JSON sidecar in the destination directory.

The user id is a Flickr NSID such as 12345678@N00. It defaults to the
configured user_id, and "me" is the owner of the OAuth token.

Credentials come from flags, FLICKRMIRROR_* environment variables, the
configuration file or an account stored with 'flickrmirror auth login'.

Runs are idempotent: an item whose file and sidecar are present is skipped
without any remote call, so an interrupted run can simply be started again.`,
	Example: `  # Mirror the token owner's photos into ./downloads
  flickrmirror mirror

  # Mirror a specific account into a directory
  flickrmirror mirror 12345678@N00 --destination ~/Pictures/flickr

  # Continue from the page where the last run stalled
  flickrmirror mirror --resume

  # Full-screen dashboard
  flickrmirror mirror --tui`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMirror,
}

func init() {
	rootCmd.AddCommand(mirrorCmd)

	for _, c := range []*cobra.Command{mirrorCmd, rootCmd} {
		c.Flags().StringVarP(&destination, "destination", "d", "", "destination directory (default: ./downloads)")
		c.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
		c.Flags().IntVar(&maxAttempts, "max-attempts", -1, "attempts per catalog page before stalling, 0 retries forever")
		c.Flags().BoolVar(&resumeRun, "resume", false, "start at the page recorded by a stalled run")
		c.Flags().BoolVar(&forceRestart, "force-restart", false, "discard a recorded checkpoint and start at page 1")
		c.Flags().BoolVar(&useTUI, "tui", false, "use the interactive terminal dashboard")
	}

	// Running without a subcommand mirrors
	rootCmd.Args = cobra.MaximumNArgs(1)
	rootCmd.RunE = runMirror
}

func runMirror(cmd *cobra.Command, args []string) error {
	flags := globalFlags(cmd)
	if len(args) > 0 {
		flags["user-id"] = strings.TrimSpace(args[0])
	}
	if destination != "" {
		flags["destination"] = destination
	}
	if maxAttempts >= 0 {
		flags["page-retry-max-attempts"] = maxAttempts
	}
	if useTUI {
		flags["tui"] = true
	}

	cfg, account, err := loadConfig(flags, accountName)
	if err != nil {
		return err
	}
	userID := cfg.Flickr.UserID

	// warnings and errors go to the dashboard's log panel
	var dashboard *tui.TUI
	var panel io.Writer
	if cfg.UI.TUI {
		dashboard = tui.NewTUI(userID)
		panel = dashboard.LogWriter(zerolog.WarnLevel)
	}
	if err := initLogging(cfg, panel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	if account != nil {
		log.WithField("account", account.Username).Info("Using stored credentials")
	}

	fs := afero.NewOsFs()
	clock := clockwork.NewRealClock()

	cp, err := checkpoint.NewManager(fs, userID, cfg.Output.DestinationDirectory, log)
	if err != nil {
		return err
	}
	startPage, err := startingPage(cp)
	if err != nil {
		return err
	}

	pacer := ratelimit.NewPacer(clock, cfg.Mirror.CourtesyDelay, cfg.Mirror.RateLimitCooldown, log)
	client, err := flickr.NewClientFromConfig(cfg, pacer, clock, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var display ui.Display
	if dashboard != nil {
		display = dashboard
	} else {
		display = ui.NewProgressDisplay(ui.Output, userID, verbose)
		ui.PrintInfo("Mirroring", userID)
		ui.PrintInfo("Destination", cfg.Output.DestinationDirectory)
		if startPage > 1 {
			ui.PrintInfo("Resuming at page", fmt.Sprint(startPage))
		}
	}
	pacer.OnCooldown(display.Cooldown)

	engine, err := mirror.NewFromConfig(cfg, client, fs, mirror.Options{
		UserID:      userID,
		StartPage:   startPage,
		Checkpoints: cp,
		Observer:    display,
		Clock:       clock,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	var summary *mirror.Summary
	if dashboard != nil {
		summary, err = runWithDashboard(ctx, stop, engine, dashboard)
	} else {
		summary, err = engine.Run(ctx)
		display.Done(summary, err)
	}

	if cfg.UI.Notifications {
		ui.NewNotifier().RunFinished(userID, summary, err)
	}

	switch {
	case errors.Is(err, mirror.ErrEnumerationStalled):
		return fmt.Errorf("%w (checkpoint saved to %s, rerun with --resume)", err, cp.Path())
	case errors.Is(err, context.Canceled):
		ui.PrintWarning("Interrupted, rerun to continue")
		return nil
	}
	return err
}

// runWithDashboard runs the engine while the dashboard owns the terminal.
// Quitting the dashboard cancels the run.
func runWithDashboard(ctx context.Context, cancel context.CancelFunc, engine *mirror.Engine, dashboard *tui.TUI) (*mirror.Summary, error) {
	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- dashboard.Start()
		cancel()
	}()

	summary, err := engine.Run(ctx)
	dashboard.Done(summary, err)
	dashboard.Stop()
	if tuiErr := <-tuiDone; tuiErr != nil {
		logger.WithError(tuiErr).Error("Dashboard failed")
	}

	// the dashboard is gone, leave a plain summary behind
	ui.NewProgressDisplay(ui.Output, engine.UserID(), false).Done(summary, err)
	return summary, err
}

// startingPage picks the first catalog page from the stall checkpoint
func startingPage(cp *checkpoint.Manager) (int, error) {
	if forceRestart {
		return 1, cp.Delete()
	}
	if !cp.Exists() {
		return 1, nil
	}

	saved, err := cp.Load()
	if err != nil {
		return 1, err
	}
	if saved == nil || saved.NextPage < 1 {
		return 1, nil
	}
	if !resumeRun {
		ui.PrintWarning(fmt.Sprintf("A previous run stalled at page %d. Use --resume to start there or --force-restart to discard it", saved.NextPage))
		return 1, nil
	}
	return saved.NextPage, nil
}

var _ mirror.Client = (*flickr.Client)(nil)
var _ mirror.CheckpointStore = (*checkpoint.Manager)(nil)
