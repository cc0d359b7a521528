package mirror

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flickrmirror/pkg/config"
	errs "flickrmirror/pkg/errors"
	"flickrmirror/pkg/flickr"
	"flickrmirror/pkg/logger"
)

func TestFetchPageBuildsDescriptors(t *testing.T) {
	h := newHarness(t, catalog()...)
	e := NewEnumerator(h.client, "me", 2, h.cfg.PageRetry, nil, nil)

	page, err := e.FetchPage(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 2)

	assert.Equal(t, "101", page.Items[0].ID)
	assert.Equal(t, "png", page.Items[0].OriginalFormat)
	require.NotNil(t, page.Items[0].OriginalURL)
	assert.Equal(t, h.srv.PhotoURL("101"), *page.Items[0].OriginalURL)

	// no originalformat attribute
	assert.Equal(t, "jpg", page.Items[1].OriginalFormat)
	assert.False(t, page.Last())

	q := h.srv.LastQuery()
	assert.Equal(t, "url_o,original_format", q.Get("extras"))
	assert.Equal(t, "2", q.Get("per_page"))
	assert.Equal(t, "me", q.Get("user_id"))
}

func TestFetchPageWithoutOriginal(t *testing.T) {
	h := newHarness(t, catalog()...)
	e := NewEnumerator(h.client, "me", 2, h.cfg.PageRetry, nil, nil)

	page, err := e.FetchPage(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Nil(t, page.Items[0].OriginalURL)
	assert.True(t, page.Last())
}

func TestFetchPageClampsPerPage(t *testing.T) {
	h := newHarness(t, catalog()...)
	e := NewEnumerator(h.client, "me", 0, h.cfg.PageRetry, nil, nil)

	_, err := e.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "500", h.srv.LastQuery().Get("per_page"))
}

func TestFetchPageBacksOffExponentially(t *testing.T) {
	h := newHarness(t, catalog()...)
	h.srv.QueueSearchFailure(1, http.StatusBadGateway, http.StatusServiceUnavailable)

	clock := clockwork.NewFakeClock()
	policy := config.PageRetryConfig{InitialDelay: 30 * time.Second, MaxDelay: 5 * time.Minute, Multiplier: 2, MaxAttempts: 10}
	tl := logger.NewTestLogger()
	e := NewEnumerator(h.client, "me", 2, policy, clock, tl)

	type outcome struct {
		page PageResult
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		p, err := e.FetchPage(context.Background(), 1)
		done <- outcome{p, err}
	}()

	clock.BlockUntil(1)
	clock.Advance(30 * time.Second)
	clock.BlockUntil(1)
	clock.Advance(60 * time.Second)

	out := <-done
	require.NoError(t, out.err)
	assert.Len(t, out.page.Items, 2)
	assert.Equal(t, 3, h.srv.Calls(flickr.MethodSearch))
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 4)
	assert.True(t, tl.HasMessage("WARN", "Catalog page fetch failed, backing off"))
}

func TestFetchPageStallsAfterMaxAttempts(t *testing.T) {
	h := newHarness(t, catalog()...)
	h.srv.QueueSearchFailure(1, http.StatusInternalServerError, http.StatusInternalServerError, http.StatusInternalServerError)
	e := NewEnumerator(h.client, "me", 2, h.cfg.PageRetry, nil, nil)

	_, err := e.FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEnumerationStalled)
	assert.True(t, errs.IsRetryable(err))

	var stalled *StalledError
	require.ErrorAs(t, err, &stalled)
	assert.Equal(t, 1, stalled.Page)
	assert.Equal(t, 3, h.srv.Calls(flickr.MethodSearch))
}

func TestFetchPageCancelledDuringBackoff(t *testing.T) {
	h := newHarness(t, catalog()...)
	h.srv.QueueSearchFailure(1, http.StatusServiceUnavailable)

	clock := clockwork.NewFakeClock()
	policy := config.PageRetryConfig{InitialDelay: 30 * time.Second, MaxDelay: time.Minute, Multiplier: 2}
	e := NewEnumerator(h.client, "me", 2, policy, clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.FetchPage(ctx, 1)
		done <- err
	}()

	clock.BlockUntil(1)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrEnumerationStalled)
}

func TestPageResultLast(t *testing.T) {
	one := []ItemDescriptor{{ID: "1"}}
	assert.True(t, PageResult{}.Last())
	assert.True(t, PageResult{Items: one, CurrentPage: 3, TotalPages: 3}.Last())
	assert.True(t, PageResult{Items: one, CurrentPage: 4, TotalPages: 3}.Last())
	assert.False(t, PageResult{Items: one, CurrentPage: 2, TotalPages: 3}.Last())
}
