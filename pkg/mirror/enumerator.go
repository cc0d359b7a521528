package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"flickrmirror/pkg/config"
	errs "flickrmirror/pkg/errors"
	"flickrmirror/pkg/flickr"
	"flickrmirror/pkg/logger"
	"flickrmirror/pkg/retry"
)

// ErrEnumerationStalled is returned when a catalog page could not be fetched
var ErrEnumerationStalled = errors.New("enumeration stalled")

// StalledError carries the page at which enumeration gave up
type StalledError struct {
	Page int
	Err  error
}

func (e *StalledError) Error() string {
	return fmt.Sprintf("enumeration stalled at page %d: %v", e.Page, e.Err)
}

func (e *StalledError) Unwrap() error { return e.Err }

func (e *StalledError) Is(target error) bool { return target == ErrEnumerationStalled }

// ItemDescriptor is the minimal per-item record yielded by the catalog
type ItemDescriptor struct {
	ID string
	// OriginalURL is nil when the original file is not downloadable
	OriginalURL    *string
	OriginalFormat string
}

// PageResult is one page of descriptors in provider order
type PageResult struct {
	Items       []ItemDescriptor
	CurrentPage int
	TotalPages  int
}

// Last reports whether no further page should be requested
func (p PageResult) Last() bool {
	return len(p.Items) == 0 || p.CurrentPage >= p.TotalPages
}

// Searcher lists a user's photos page by page
type Searcher interface {
	Search(ctx context.Context, userID string, page, perPage int) (*flickr.SearchResponse, error)
}

// Enumerator walks the remote catalog one page at a time
type Enumerator struct {
	api     Searcher
	userID  string
	perPage int
	policy  retry.Config
	logger  logger.Logger
}

// NewEnumerator creates an Enumerator retrying failed pages according to policy
func NewEnumerator(api Searcher, userID string, perPage int, policy config.PageRetryConfig, clock clockwork.Clock, log logger.Logger) *Enumerator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if perPage <= 0 || perPage > flickr.MaxPerPage {
		perPage = flickr.MaxPerPage
	}
	return &Enumerator{
		api:     api,
		userID:  userID,
		perPage: perPage,
		policy: retry.Config{
			MaxAttempts: policy.MaxAttempts,
			Backoff: &retry.ExponentialBackoff{
				BaseDelay:  policy.InitialDelay,
				MaxDelay:   policy.MaxDelay,
				Multiplier: policy.Multiplier,
			},
			Clock:  clock,
			Logger: log,
		},
		logger: log,
	}
}

// FetchPage fetches one catalog page, retrying transient failures with backoff.
// A page that cannot be fetched yields a *StalledError.
func (e *Enumerator) FetchPage(ctx context.Context, page int) (PageResult, error) {
	policy := e.policy
	policy.RetryIf = func(err error) bool {
		return ctx.Err() == nil && errs.IsRetryable(err)
	}
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		e.logger.WarnWithFields("Catalog page fetch failed, backing off", map[string]interface{}{
			"page":    page,
			"attempt": attempt,
			"delay":   delay,
			"error":   err.Error(),
		})
	}

	resp, err := retry.DoWithResult(ctx, func(ctx context.Context) (*flickr.SearchResponse, error) {
		return e.api.Search(ctx, e.userID, page, e.perPage)
	}, policy)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return PageResult{}, ctxErr
		}
		return PageResult{}, &StalledError{Page: page, Err: err}
	}

	result := PageResult{
		Items:       make([]ItemDescriptor, 0, len(resp.Photos.Photo)),
		CurrentPage: int(resp.Photos.Page),
		TotalPages:  int(resp.Photos.Pages),
	}
	if result.CurrentPage < page {
		result.CurrentPage = page
	}

	for _, p := range resp.Photos.Photo {
		if p.ID == "" {
			continue
		}
		d := ItemDescriptor{ID: p.ID, OriginalFormat: flickr.DefaultFormat}
		if p.URLOriginal != nil && *p.URLOriginal != "" {
			u := *p.URLOriginal
			d.OriginalURL = &u
		}
		if p.OriginalFormat != nil && *p.OriginalFormat != "" {
			d.OriginalFormat = *p.OriginalFormat
		}
		result.Items = append(result.Items, d)
	}

	logger.LogPage(e.logger, result.CurrentPage, result.TotalPages, len(result.Items))
	return result, nil
}
