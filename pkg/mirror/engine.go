package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"flickrmirror/pkg/logger"
)

// Observer receives progress events from the engine
type Observer interface {
	PageFetched(page PageResult)
	ItemStarted(d ItemDescriptor)
	ItemFinished(r ItemResult)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) PageFetched(PageResult)     {}
func (NopObserver) ItemStarted(ItemDescriptor) {}
func (NopObserver) ItemFinished(ItemResult)    {}

// CheckpointStore persists the page at which enumeration stalled
type CheckpointStore interface {
	RecordStall(userID string, page, totalPages int, cause error) error
	Delete() error
}

// Summary counts what a run did
type Summary struct {
	StartPage  int
	Pages      int
	TotalPages int
	Items      int

	BinariesWritten     int
	BinariesPresent     int
	BinariesSkipped     int
	BinariesUnavailable int
	MetadataWritten     int
	MetadataPresent     int

	// Failed counts artifacts that could not be persisted (skipped or failed)
	Failed   int
	Bytes    int64
	Duration time.Duration
	// Completed is set when the catalog was walked to the end
	Completed bool
	// StalledAt is the page that could not be fetched, zero otherwise
	StalledAt int
}

func (s *Summary) add(r ItemResult) {
	s.Items++
	s.Bytes += r.BinaryBytes

	switch r.BinaryState {
	case StateWritten:
		s.BinariesWritten++
	case StatePresent:
		s.BinariesPresent++
	case StateUnavailable:
		s.BinariesUnavailable++
	case StateSkipped, StateFailed:
		s.BinariesSkipped++
		s.Failed++
	}

	switch r.MetadataState {
	case StateWritten:
		s.MetadataWritten++
	case StatePresent:
		s.MetadataPresent++
	case StateSkipped, StateFailed:
		s.Failed++
	}
}

// Options configures an Engine
type Options struct {
	UserID      string
	StartPage   int
	Checkpoints CheckpointStore
	Observer    Observer
	Clock       clockwork.Clock
	Logger      logger.Logger
}

// Engine walks the catalog page by page and syncs every item in provider order
type Engine struct {
	enumerator  *Enumerator
	syncer      *Syncer
	userID      string
	startPage   int
	checkpoints CheckpointStore
	observer    Observer
	clock       clockwork.Clock
	logger      logger.Logger
}

// NewEngine creates an Engine
func NewEngine(enumerator *Enumerator, syncer *Syncer, opts Options) *Engine {
	e := &Engine{
		enumerator:  enumerator,
		syncer:      syncer,
		userID:      opts.UserID,
		startPage:   opts.StartPage,
		checkpoints: opts.Checkpoints,
		observer:    opts.Observer,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}
	if e.startPage < 1 {
		e.startPage = 1
	}
	if e.observer == nil {
		e.observer = NopObserver{}
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	if e.logger == nil {
		e.logger = logger.NewNopLogger()
	}
	return e
}

// UserID is the account whose catalog is mirrored
func (e *Engine) UserID() string { return e.userID }

// Run mirrors the catalog. It returns an error wrapping ErrEnumerationStalled
// when a page could not be fetched, or the context error when cancelled.
// The summary is always returned.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	start := e.clock.Now()
	summary := &Summary{StartPage: e.startPage}
	defer func() { summary.Duration = e.clock.Since(start) }()

	e.logger.InfoWithFields("Starting mirror run", map[string]interface{}{
		"user_id":    e.userID,
		"start_page": e.startPage,
		"action":     "mirror_start",
	})

	for page := e.startPage; ; page++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result, err := e.enumerator.FetchPage(ctx, page)
		if err != nil {
			if errors.Is(err, ErrEnumerationStalled) {
				summary.StalledAt = page
				e.recordStall(page, summary.TotalPages, err)
			}
			return summary, err
		}

		summary.Pages++
		summary.TotalPages = result.TotalPages
		e.observer.PageFetched(result)

		for _, item := range result.Items {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			e.observer.ItemStarted(item)
			r := e.syncer.Sync(ctx, item)
			summary.add(r)
			e.observer.ItemFinished(r)
		}

		if result.Last() {
			break
		}
	}

	summary.Completed = true
	if e.checkpoints != nil {
		if err := e.checkpoints.Delete(); err != nil {
			e.logger.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	e.logger.InfoWithFields("Mirror run completed", map[string]interface{}{
		"user_id":          e.userID,
		"pages":            summary.Pages,
		"items":            summary.Items,
		"binaries_written": summary.BinariesWritten,
		"metadata_written": summary.MetadataWritten,
		"failed":           summary.Failed,
		"action":           "mirror_complete",
	})
	return summary, nil
}

func (e *Engine) recordStall(page, totalPages int, cause error) {
	e.logger.WithError(cause).WithFields(map[string]interface{}{
		"user_id": e.userID,
		"page":    page,
	}).Error("Catalog enumeration stalled")

	if e.checkpoints == nil {
		return
	}
	if err := e.checkpoints.RecordStall(e.userID, page, totalPages, unwrapStall(cause)); err != nil {
		e.logger.WithError(err).Warn("Failed to record checkpoint")
	}
}

func unwrapStall(err error) error {
	var stalled *StalledError
	if errors.As(err, &stalled) {
		return stalled.Err
	}
	return err
}
