package mirror

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flickrmirror/pkg/flickr"
	"flickrmirror/pkg/logger"
	"flickrmirror/pkg/metadata"
	"flickrmirror/pkg/storage"
)

type stubDownloader struct {
	data  string
	err   error
	calls int
}

func (s *stubDownloader) DownloadBinary(ctx context.Context, rawURL string, w io.Writer) (flickr.DownloadResult, error) {
	s.calls++
	if s.err != nil {
		return flickr.DownloadResult{Attempts: 1}, s.err
	}
	n, err := io.WriteString(w, s.data)
	return flickr.DownloadResult{Bytes: int64(n), Attempts: 1}, err
}

type stubMetadata struct {
	err   error
	calls int
}

func (s *stubMetadata) Assemble(ctx context.Context, id string) (*metadata.PhotoMetadata, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &metadata.PhotoMetadata{ID: id, Tags: []string{}, Comments: []metadata.CommentRecord{}}, nil
}

func newTestSyncer(t *testing.T) (*Syncer, *stubDownloader, *stubMetadata, afero.Fs, *logger.TestLogger) {
	t.Helper()
	fs := afero.NewMemMapFs()
	ledger, err := storage.NewLedger(fs, mirrorDir, 0755, 0644)
	require.NoError(t, err)
	dl := &stubDownloader{data: "bytes"}
	md := &stubMetadata{}
	tl := logger.NewTestLogger()
	return NewSyncer(dl, md, ledger, tl), dl, md, fs, tl
}

func descriptor(id string) ItemDescriptor {
	u := "https://live.staticflickr.com/" + id + "_o.jpg"
	return ItemDescriptor{ID: id, OriginalURL: &u, OriginalFormat: "jpg"}
}

func TestSyncWritesBothArtifacts(t *testing.T) {
	s, dl, md, fs, tl := newTestSyncer(t)

	res := s.Sync(context.Background(), descriptor("7"))
	assert.Equal(t, StateWritten, res.BinaryState)
	assert.Equal(t, StateWritten, res.MetadataState)
	assert.Equal(t, int64(5), res.BinaryBytes)
	assert.True(t, res.Complete())
	assert.Equal(t, 1, dl.calls)
	assert.Equal(t, 1, md.calls)

	data, err := afero.ReadFile(fs, mirrorDir+"/7.json")
	require.NoError(t, err)
	meta, err := metadata.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "7", meta.ID)

	assert.Len(t, tl.GetMessagesByLevel("INFO"), 2)
}

func TestSyncPresentArtifactsMakeNoCalls(t *testing.T) {
	s, dl, md, fs, _ := newTestSyncer(t)
	require.NoError(t, afero.WriteFile(fs, mirrorDir+"/7.jpg", []byte("old"), 0644))
	require.NoError(t, afero.WriteFile(fs, mirrorDir+"/7.json", []byte("{}"), 0644))

	res := s.Sync(context.Background(), descriptor("7"))
	assert.Equal(t, StatePresent, res.BinaryState)
	assert.Equal(t, StatePresent, res.MetadataState)
	assert.Zero(t, dl.calls)
	assert.Zero(t, md.calls)

	data, _ := afero.ReadFile(fs, mirrorDir+"/7.jpg")
	assert.Equal(t, "old", string(data))
}

func TestSyncBinaryAndMetadataAreIndependent(t *testing.T) {
	s, dl, md, fs, _ := newTestSyncer(t)
	require.NoError(t, afero.WriteFile(fs, mirrorDir+"/7.json", []byte("{}"), 0644))

	res := s.Sync(context.Background(), descriptor("7"))
	assert.Equal(t, StateWritten, res.BinaryState)
	assert.Equal(t, StatePresent, res.MetadataState)
	assert.Equal(t, 1, dl.calls)
	assert.Zero(t, md.calls)
}

func TestSyncWithoutOriginalURL(t *testing.T) {
	s, dl, _, _, _ := newTestSyncer(t)

	res := s.Sync(context.Background(), ItemDescriptor{ID: "7", OriginalFormat: "jpg"})
	assert.Equal(t, StateUnavailable, res.BinaryState)
	assert.Equal(t, StateWritten, res.MetadataState)
	assert.False(t, res.Complete())
	assert.Zero(t, dl.calls)
}

func TestSyncDownloadFailureIsSkipped(t *testing.T) {
	s, dl, _, fs, tl := newTestSyncer(t)
	dl.err = errors.New("connection reset")

	res := s.Sync(context.Background(), descriptor("7"))
	assert.Equal(t, StateSkipped, res.BinaryState)
	assert.EqualError(t, res.BinaryErr, "connection reset")
	assert.Equal(t, StateWritten, res.MetadataState)

	for _, name := range []string{"7.jpg", "7.jpg.part"} {
		ok, _ := afero.Exists(fs, mirrorDir+"/"+name)
		assert.False(t, ok, name)
	}
	assert.True(t, tl.HasMessage("WARN", "Artifact not saved"))
}

func TestSyncAssemblyFailureLeavesNoSidecar(t *testing.T) {
	s, _, md, fs, _ := newTestSyncer(t)
	md.err = errors.New("photo has no dates")

	res := s.Sync(context.Background(), descriptor("7"))
	assert.Equal(t, StateWritten, res.BinaryState)
	assert.Equal(t, StateFailed, res.MetadataState)

	ok, _ := afero.Exists(fs, mirrorDir+"/7.json")
	assert.False(t, ok)
}

func TestSyncInvalidIDFails(t *testing.T) {
	s, dl, md, _, _ := newTestSyncer(t)

	res := s.Sync(context.Background(), descriptor("../7"))
	assert.Equal(t, StateFailed, res.BinaryState)
	assert.ErrorIs(t, res.BinaryErr, storage.ErrInvalidName)
	assert.Equal(t, StateFailed, res.MetadataState)
	assert.Zero(t, dl.calls)
	assert.Zero(t, md.calls)
}

func TestSyncCancelled(t *testing.T) {
	s, dl, md, _, _ := newTestSyncer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Sync(ctx, descriptor("7"))
	assert.Equal(t, StateSkipped, res.BinaryState)
	assert.Equal(t, StateSkipped, res.MetadataState)
	assert.Zero(t, dl.calls)
	assert.Zero(t, md.calls)
}
