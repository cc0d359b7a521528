package mirror

import (
	"context"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flickrmirror/internal/flickrtest"
	"flickrmirror/pkg/checkpoint"
	"flickrmirror/pkg/config"
	"flickrmirror/pkg/flickr"
	"flickrmirror/pkg/logger"
	"flickrmirror/pkg/ratelimit"
)

const mirrorDir = "/mirror"

type harness struct {
	srv         *flickrtest.Server
	client      *flickr.Client
	cfg         *config.Config
	checkpoints *checkpoint.Manager
	log         *logger.TestLogger
}

func newHarness(t *testing.T, photos ...flickrtest.Photo) *harness {
	t.Helper()
	srv := flickrtest.NewServer(photos...)
	t.Cleanup(srv.Close)

	client, err := flickr.NewClient(flickr.Options{
		Endpoint:    srv.Endpoint(),
		Credentials: flickr.Credentials{APIKey: "key", APISecret: "secret"},
		Pacer:       ratelimit.NoWait{},
		Logger:      logger.NewNopLogger(),
	})
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Output.DestinationDirectory = mirrorDir
	cfg.Mirror.PerPage = 2
	cfg.PageRetry = config.PageRetryConfig{Multiplier: 2, MaxAttempts: 3}

	return &harness{srv: srv, client: client, cfg: cfg, log: logger.NewTestLogger()}
}

func (h *harness) engine(t *testing.T, fs afero.Fs, opts Options) *Engine {
	t.Helper()
	if h.checkpoints == nil {
		cp, err := checkpoint.NewManagerAt(fs, "/state", h.cfg.Flickr.UserID, mirrorDir, nil)
		require.NoError(t, err)
		h.checkpoints = cp
	}
	if opts.Checkpoints == nil {
		opts.Checkpoints = h.checkpoints
	}
	if opts.Logger == nil {
		opts.Logger = h.log
	}
	e, err := NewFromConfig(h.cfg, h.client, fs, opts)
	require.NoError(t, err)
	return e
}

func catalog() []flickrtest.Photo {
	return []flickrtest.Photo{
		{ID: "101", Format: "png", Data: []byte("png-bytes"), Posted: 1700000000, LastUpdate: 1700000100, Tags: []string{"sea"}},
		{ID: "102", Data: []byte("jpg-bytes"), Posted: 1700000200, LastUpdate: 1700000300,
			Comments: []flickrtest.Comment{{AuthorName: "bob", DateCreate: 1700000400, Text: "nice"}}},
		{ID: "103", NoOriginal: true, Posted: 1700000500, LastUpdate: 1700000600},
	}
}

func listFiles(t *testing.T, fs afero.Fs) map[string]string {
	t.Helper()
	files := make(map[string]string)
	entries, err := afero.ReadDir(fs, mirrorDir)
	require.NoError(t, err)
	for _, e := range entries {
		data, err := afero.ReadFile(fs, mirrorDir+"/"+e.Name())
		require.NoError(t, err)
		files[e.Name()] = string(data)
	}
	return files
}

func names(files map[string]string) []string {
	out := make([]string, 0, len(files))
	for name := range files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// recorder is an Observer that remembers events and can cancel a run
type recorder struct {
	pages    []int
	started  []string
	finished []ItemResult
	cancelAt int
	cancel   context.CancelFunc
}

func (r *recorder) PageFetched(p PageResult)     { r.pages = append(r.pages, p.CurrentPage) }
func (r *recorder) ItemStarted(d ItemDescriptor) { r.started = append(r.started, d.ID) }
func (r *recorder) ItemFinished(res ItemResult) {
	r.finished = append(r.finished, res)
	if r.cancel != nil && len(r.finished) == r.cancelAt {
		r.cancel()
	}
}

func TestRunMirrorsCatalog(t *testing.T) {
	h := newHarness(t, catalog()...)
	fs := afero.NewMemMapFs()
	rec := &recorder{}

	summary, err := h.engine(t, fs, Options{Observer: rec}).Run(context.Background())
	require.NoError(t, err)

	files := listFiles(t, fs)
	assert.Equal(t, []string{"101.json", "101.png", "102.jpg", "102.json", "103.json"}, names(files))
	assert.Equal(t, "png-bytes", files["101.png"])
	assert.Equal(t, "jpg-bytes", files["102.jpg"])

	assert.True(t, summary.Completed)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 2, summary.TotalPages)
	assert.Equal(t, 3, summary.Items)
	assert.Equal(t, 2, summary.BinariesWritten)
	assert.Equal(t, 1, summary.BinariesUnavailable)
	assert.Equal(t, 3, summary.MetadataWritten)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, int64(len("png-bytes")+len("jpg-bytes")), summary.Bytes)

	assert.Equal(t, []int{1, 2}, rec.pages)
	assert.Equal(t, []string{"101", "102", "103"}, rec.started)
	assert.True(t, h.log.HasMessage("INFO", "Mirror run completed"))
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t, catalog()...)
	fs := afero.NewMemMapFs()

	_, err := h.engine(t, fs, Options{}).Run(context.Background())
	require.NoError(t, err)
	before := listFiles(t, fs)

	h.srv.ResetCounters()
	summary, err := h.engine(t, fs, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, before, listFiles(t, fs))
	assert.Equal(t, 2, h.srv.Calls(flickr.MethodSearch))
	assert.Zero(t, h.srv.Calls(flickr.MethodGetInfo))
	assert.Zero(t, h.srv.Calls(flickr.MethodGetComments))
	for _, id := range []string{"101", "102", "103"} {
		assert.Zero(t, h.srv.Downloads(id), id)
	}

	assert.Equal(t, 2, summary.BinariesPresent)
	assert.Equal(t, 3, summary.MetadataPresent)
	assert.Zero(t, summary.BinariesWritten)
	assert.Zero(t, summary.MetadataWritten)
}

func TestRunResumesAfterInterruption(t *testing.T) {
	h := newHarness(t, catalog()...)

	reference := afero.NewMemMapFs()
	_, err := h.engine(t, reference, Options{}).Run(context.Background())
	require.NoError(t, err)

	h.checkpoints = nil
	fs := afero.NewMemMapFs()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{cancelAt: 2, cancel: cancel}

	summary, err := h.engine(t, fs, Options{Observer: rec}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, summary.Completed)
	assert.Equal(t, 2, summary.Items)

	_, err = h.engine(t, fs, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, listFiles(t, reference), listFiles(t, fs))
}

func TestRunSkipsFailedDownloadButWritesSidecar(t *testing.T) {
	h := newHarness(t, catalog()...)
	h.srv.QueueDownloadStatus("101", http.StatusInternalServerError)
	fs := afero.NewMemMapFs()
	rec := &recorder{}

	summary, err := h.engine(t, fs, Options{Observer: rec}).Run(context.Background())
	require.NoError(t, err)

	files := listFiles(t, fs)
	assert.NotContains(t, files, "101.png")
	assert.NotContains(t, files, "101.png.part")
	assert.Contains(t, files, "101.json")
	assert.Equal(t, 1, summary.BinariesSkipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, StateSkipped, rec.finished[0].BinaryState)
	assert.Equal(t, StateWritten, rec.finished[0].MetadataState)
	assert.Equal(t, 1, h.srv.Downloads("101"))

	// the next run fetches only the missing binary
	h.srv.ResetCounters()
	summary, err = h.engine(t, fs, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", listFiles(t, fs)["101.png"])
	assert.Equal(t, 1, summary.BinariesWritten)
	assert.Zero(t, h.srv.Calls(flickr.MethodGetInfo))
}

func TestRunSkipsAfterSecondRateLimit(t *testing.T) {
	h := newHarness(t, catalog()...)
	h.srv.QueueDownloadStatus("102", http.StatusTooManyRequests, http.StatusTooManyRequests)
	fs := afero.NewMemMapFs()

	summary, err := h.engine(t, fs, Options{}).Run(context.Background())
	require.NoError(t, err)

	files := listFiles(t, fs)
	assert.NotContains(t, files, "102.jpg")
	assert.Contains(t, files, "102.json")
	assert.Equal(t, 2, h.srv.Downloads("102"))
	assert.Equal(t, 1, summary.BinariesSkipped)
}

func TestRunDiscardsFailedMetadata(t *testing.T) {
	h := newHarness(t, catalog()...)
	h.srv.FailComments("102", true)
	fs := afero.NewMemMapFs()
	rec := &recorder{}

	summary, err := h.engine(t, fs, Options{Observer: rec}).Run(context.Background())
	require.NoError(t, err)

	files := listFiles(t, fs)
	assert.Contains(t, files, "102.jpg")
	assert.NotContains(t, files, "102.json")
	assert.Equal(t, StateFailed, rec.finished[1].MetadataState)
	assert.Error(t, rec.finished[1].MetadataErr)
	assert.Equal(t, 2, summary.MetadataWritten)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunStopsWhenCurrentPageReachesTotal(t *testing.T) {
	h := newHarness(t, catalog()...)
	h.srv.ReportPages(1)
	fs := afero.NewMemMapFs()

	summary, err := h.engine(t, fs, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, h.srv.Calls(flickr.MethodSearch))
	assert.Equal(t, 2, summary.Items)
	assert.True(t, summary.Completed)
}

func TestRunStopsOnEmptyPage(t *testing.T) {
	h := newHarness(t, catalog()...)
	h.srv.ReportPages(10)
	fs := afero.NewMemMapFs()

	summary, err := h.engine(t, fs, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, h.srv.Calls(flickr.MethodSearch))
	assert.Equal(t, 3, summary.Pages)
	assert.Equal(t, 3, summary.Items)
}

func TestRunEmptyCatalog(t *testing.T) {
	h := newHarness(t)
	fs := afero.NewMemMapFs()

	summary, err := h.engine(t, fs, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, h.srv.Calls(flickr.MethodSearch))
	assert.Zero(t, summary.Items)
	assert.True(t, summary.Completed)
	assert.Empty(t, listFiles(t, fs))
}

func TestRunRecordsStallAndResumesFromCheckpoint(t *testing.T) {
	h := newHarness(t, catalog()...)
	h.srv.QueueSearchFailure(2, http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable)
	fs := afero.NewMemMapFs()

	summary, err := h.engine(t, fs, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEnumerationStalled)
	assert.Equal(t, 2, summary.StalledAt)
	assert.Equal(t, 2, summary.Items)
	assert.False(t, summary.Completed)
	assert.Equal(t, 4, h.srv.Calls(flickr.MethodSearch))

	cp, err := h.checkpoints.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 2, cp.NextPage)
	assert.Equal(t, 2, cp.TotalPages)
	assert.Contains(t, cp.LastError, "503")

	h.srv.ResetCounters()
	summary, err = h.engine(t, fs, Options{StartPage: cp.NextPage}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.srv.Calls(flickr.MethodSearch))
	assert.Equal(t, 1, summary.Items)
	assert.False(t, h.checkpoints.Exists())
	assert.Contains(t, listFiles(t, fs), "103.json")
}

func TestRunStallsOnPageWithoutPhotosBlock(t *testing.T) {
	h := newHarness(t, catalog()...)
	h.srv.ReportPages(9)
	h.srv.QueueSearchFailure(4, http.StatusOK, http.StatusOK, http.StatusOK)
	fs := afero.NewMemMapFs()
	e := h.engine(t, fs, Options{StartPage: 4})
	require.NoError(t, h.checkpoints.RecordStall(h.cfg.Flickr.UserID, 4, 9, nil))

	summary, err := e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEnumerationStalled)
	assert.False(t, summary.Completed)
	assert.Equal(t, 4, summary.StalledAt)
	assert.Equal(t, 3, h.srv.Calls(flickr.MethodSearch))

	cp, err := h.checkpoints.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 4, cp.NextPage)
	assert.Contains(t, cp.LastError, "no photos block")
}

func TestRunFatalPageErrorStallsImmediately(t *testing.T) {
	h := newHarness(t, catalog()...)
	h.srv.QueueSearchFailure(1, http.StatusForbidden)
	fs := afero.NewMemMapFs()

	_, err := h.engine(t, fs, Options{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrEnumerationStalled)
	assert.Equal(t, 1, h.srv.Calls(flickr.MethodSearch))
	assert.True(t, h.checkpoints.Exists())
}

func TestRunCancelledBeforeStart(t *testing.T) {
	h := newHarness(t, catalog()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine(t, afero.NewMemMapFs(), Options{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.srv.Requests())
}

func TestRunDurationUsesClock(t *testing.T) {
	h := newHarness(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	summary, err := h.engine(t, afero.NewMemMapFs(), Options{Clock: clock}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), summary.Duration)
}
