package mirror

import (
	"fmt"

	"github.com/spf13/afero"

	"flickrmirror/pkg/config"
	"flickrmirror/pkg/metadata"
	"flickrmirror/pkg/storage"
)

// Client is the remote surface the engine needs
type Client interface {
	Searcher
	Downloader
	metadata.API
}

// NewFromConfig wires an Engine for cfg on top of client, storing files in fs
func NewFromConfig(cfg *config.Config, client Client, fs afero.Fs, opts Options) (*Engine, error) {
	dirPerm, err := config.ParsePerm(cfg.Output.DirPermissions)
	if err != nil {
		return nil, fmt.Errorf("invalid dir_permissions: %w", err)
	}
	filePerm, err := config.ParsePerm(cfg.Output.FilePermissions)
	if err != nil {
		return nil, fmt.Errorf("invalid file_permissions: %w", err)
	}

	ledger, err := storage.NewLedger(fs, cfg.Output.DestinationDirectory, dirPerm, filePerm)
	if err != nil {
		return nil, err
	}

	if opts.UserID == "" {
		opts.UserID = cfg.Flickr.UserID
	}

	enumerator := NewEnumerator(client, opts.UserID, cfg.Mirror.PerPage, cfg.PageRetry, opts.Clock, opts.Logger)
	assembler := metadata.NewAssembler(client, nil, opts.Logger)
	syncer := NewSyncer(client, assembler, ledger, opts.Logger)

	return NewEngine(enumerator, syncer, opts), nil
}
