package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"flickrmirror/pkg/checkpoint"
	"flickrmirror/pkg/config"
	"flickrmirror/pkg/logger"
	"flickrmirror/pkg/storage"
	"flickrmirror/pkg/ui"
)

var cleanStray bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [user-id]",
	Short: "Show what is already mirrored",
	Long: `Inspect the destination directory without contacting Flickr.

Items are complete when both the original and the sidecar exist. Files ending
in .part or .tmp are left over from interrupted writes; --clean removes them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&destination, "destination", "d", "", "destination directory")
	statusCmd.Flags().BoolVar(&cleanStray, "clean", false, "remove leftovers of interrupted writes")
}

func runStatus(cmd *cobra.Command, args []string) error {
	flags := globalFlags(cmd)
	if destination != "" {
		flags["destination"] = destination
	}
	if len(args) > 0 {
		flags["user-id"] = args[0]
	}

	cfg, err := config.LoadUnvalidated(configFile, flags)
	if err != nil {
		return err
	}
	dirPerm, err := config.ParsePerm(cfg.Output.DirPermissions)
	if err != nil {
		return err
	}
	filePerm, err := config.ParsePerm(cfg.Output.FilePermissions)
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	ledger, err := storage.NewLedger(fs, cfg.Output.DestinationDirectory, dirPerm, filePerm)
	if err != nil {
		return err
	}

	if cleanStray {
		removed, err := ledger.RemoveStray()
		if err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Removed %d leftover files", removed))
	}

	report, err := ledger.Scan()
	if err != nil {
		return err
	}
	ui.PrintReport(ui.Output, ledger.Dir(), report, verbose)

	cp, err := checkpoint.NewManager(fs, cfg.Flickr.UserID, cfg.Output.DestinationDirectory, logger.NewNopLogger())
	if err != nil {
		return err
	}
	saved, err := cp.Load()
	if err != nil {
		return err
	}
	if saved != nil {
		ui.PrintWarning(fmt.Sprintf("Run for %s stalled at page %d/%d on %s: %s",
			saved.UserID, saved.NextPage, saved.TotalPages, saved.StalledAt.Format("2006-01-02 15:04"), saved.LastError))
	}
	return nil
}
