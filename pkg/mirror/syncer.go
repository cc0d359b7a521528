package mirror

import (
	"context"
	"errors"
	"io"

	"flickrmirror/pkg/flickr"
	"flickrmirror/pkg/logger"
	"flickrmirror/pkg/metadata"
	"flickrmirror/pkg/storage"
)

// ArtifactState is the outcome of one artifact of one item
type ArtifactState string

const (
	// StatePresent means the file was already on disk; nothing was fetched
	StatePresent ArtifactState = "present"
	// StateWritten means the file was fetched and persisted during this run
	StateWritten ArtifactState = "written"
	// StateSkipped means the remote transfer failed; the next run retries it
	StateSkipped ArtifactState = "skipped"
	// StateUnavailable means the catalog offered no original to download
	StateUnavailable ArtifactState = "unavailable"
	// StateFailed means assembly or a local write failed; no file was left behind
	StateFailed ArtifactState = "failed"
)

const (
	artifactBinary   = "binary"
	artifactMetadata = "metadata"
)

// ItemResult reports what Sync did for one descriptor
type ItemResult struct {
	ID            string
	Format        string
	BinaryState   ArtifactState
	MetadataState ArtifactState
	BinaryBytes   int64
	BinaryErr     error
	MetadataErr   error
}

// Complete reports whether both artifacts are on disk after the sync
func (r ItemResult) Complete() bool {
	return onDisk(r.BinaryState) && onDisk(r.MetadataState)
}

func onDisk(s ArtifactState) bool {
	return s == StatePresent || s == StateWritten
}

// Downloader streams an original file
type Downloader interface {
	DownloadBinary(ctx context.Context, rawURL string, w io.Writer) (flickr.DownloadResult, error)
}

// MetadataSource builds the sidecar record of a photo
type MetadataSource interface {
	Assemble(ctx context.Context, photoID string) (*metadata.PhotoMetadata, error)
}

// Syncer brings one item's artifacts on disk up to date.
// Artifacts that already exist are never fetched again.
type Syncer struct {
	downloader Downloader
	meta       MetadataSource
	ledger     *storage.Ledger
	logger     logger.Logger
}

// NewSyncer creates a Syncer persisting into ledger
func NewSyncer(dl Downloader, meta MetadataSource, ledger *storage.Ledger, log logger.Logger) *Syncer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Syncer{downloader: dl, meta: meta, ledger: ledger, logger: log}
}

// Sync handles the binary first, then the sidecar. The two are independent:
// a failed download does not prevent the sidecar from being written.
func (s *Syncer) Sync(ctx context.Context, d ItemDescriptor) ItemResult {
	res := ItemResult{ID: d.ID, Format: d.OriginalFormat}

	res.BinaryState, res.BinaryBytes, res.BinaryErr = s.syncBinary(ctx, d)
	logger.LogArtifact(s.logger, d.ID, artifactBinary, string(res.BinaryState), res.BinaryErr)

	res.MetadataState, res.MetadataErr = s.syncMetadata(ctx, d.ID)
	logger.LogArtifact(s.logger, d.ID, artifactMetadata, string(res.MetadataState), res.MetadataErr)

	return res
}

func (s *Syncer) syncBinary(ctx context.Context, d ItemDescriptor) (ArtifactState, int64, error) {
	has, err := s.ledger.HasBinary(d.ID, d.OriginalFormat)
	if err != nil {
		return StateFailed, 0, err
	}
	if has {
		return StatePresent, 0, nil
	}
	if d.OriginalURL == nil {
		return StateUnavailable, 0, nil
	}
	if err := ctx.Err(); err != nil {
		return StateSkipped, 0, err
	}

	var remoteErr error
	n, err := s.ledger.SaveBinary(d.ID, d.OriginalFormat, func(w io.Writer) error {
		_, remoteErr = s.downloader.DownloadBinary(ctx, *d.OriginalURL, w)
		return remoteErr
	})
	switch {
	case err == nil:
		return StateWritten, n, nil
	case remoteErr != nil:
		return StateSkipped, 0, remoteErr
	default:
		return StateFailed, 0, err
	}
}

func (s *Syncer) syncMetadata(ctx context.Context, id string) (ArtifactState, error) {
	has, err := s.ledger.HasMetadata(id)
	if err != nil {
		return StateFailed, err
	}
	if has {
		return StatePresent, nil
	}
	if err := ctx.Err(); err != nil {
		return StateSkipped, err
	}

	meta, err := s.meta.Assemble(ctx, id)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return StateSkipped, err
		}
		return StateFailed, err
	}

	data, err := metadata.Encode(meta)
	if err != nil {
		return StateFailed, err
	}
	if err := s.ledger.SaveMetadata(id, data); err != nil {
		return StateFailed, err
	}
	return StateWritten, nil
}
