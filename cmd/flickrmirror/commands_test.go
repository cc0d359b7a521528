package main

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flickrmirror/pkg/auth"
	"flickrmirror/pkg/checkpoint"
	"flickrmirror/pkg/config"
	"flickrmirror/pkg/ui"
)

func silenceUI(t *testing.T) {
	t.Helper()
	old := ui.Output
	ui.Output = io.Discard
	t.Cleanup(func() { ui.Output = old })
}

func TestStartingPage(t *testing.T) {
	silenceUI(t)
	t.Cleanup(func() { resumeRun, forceRestart = false, false })

	cp, err := checkpoint.NewManagerAt(afero.NewMemMapFs(), "/state", "12345678@N00", "downloads", nil)
	require.NoError(t, err)

	page, err := startingPage(cp)
	require.NoError(t, err)
	assert.Equal(t, 1, page)

	require.NoError(t, cp.RecordStall("12345678@N00", 7, 20, errors.New("status 502")))

	// a stall is only honoured with --resume
	page, err = startingPage(cp)
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.True(t, cp.Exists())

	resumeRun = true
	page, err = startingPage(cp)
	require.NoError(t, err)
	assert.Equal(t, 7, page)

	forceRestart = true
	page, err = startingPage(cp)
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.False(t, cp.Exists())
}

func TestMaskedConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Flickr.APIKey = "publickey"
	cfg.Flickr.APISecret = "abcdef0123456789"
	cfg.Flickr.OAuthToken = "short"

	masked := maskedConfig(cfg)
	assert.Equal(t, "publickey", masked.Flickr.APIKey)
	assert.Equal(t, "abcd...6789", masked.Flickr.APISecret)
	assert.Equal(t, "***", masked.Flickr.OAuthToken)
	assert.Empty(t, masked.Flickr.OAuthTokenSecret)
	assert.Equal(t, "abcdef0123456789", cfg.Flickr.APISecret)
}

func TestPrintAccounts(t *testing.T) {
	var buf bytes.Buffer
	printAccounts(&buf, nil)
	assert.Contains(t, buf.String(), "auth login")

	buf.Reset()
	printAccounts(&buf, []*auth.Account{{
		Username:         "alice",
		NSID:             "12345678@N00",
		APIKey:           "key0123456789",
		OAuthToken:       "72157000000000000-abcdef0123456789",
		OAuthTokenSecret: "0123456789abcdef",
		LastModified:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}})

	out := buf.String()
	assert.Contains(t, out, "1. alice")
	assert.Contains(t, out, "NSID: 12345678@N00")
	assert.Contains(t, out, "OAuth token: 7215...6789")
	assert.NotContains(t, out, "abcdef0123456789")
	assert.Contains(t, out, "2024-05-01 10:00:00")
}

func TestPrompt(t *testing.T) {
	silenceUI(t)

	r := bufio.NewReader(strings.NewReader("  value  \n\n"))
	got, err := prompt(r, "API key", "")
	require.NoError(t, err)
	assert.Equal(t, "value", got)

	got, err = prompt(r, "Account name", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", got)

	// input exhausted
	_, err = prompt(r, "API key", "")
	assert.Error(t, err)
	got, err = prompt(r, "Choice", "0")
	require.NoError(t, err)
	assert.Equal(t, "0", got)
}

func TestExampleConfigParses(t *testing.T) {
	path := t.TempDir() + "/flickrmirror.yaml"
	require.NoError(t, afero.WriteFile(afero.NewOsFs(), path, []byte(exampleConfig), 0600))

	cfg := config.DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, 500*time.Millisecond, cfg.Mirror.CourtesyDelay)
	assert.Equal(t, 5*time.Minute, cfg.Mirror.RateLimitCooldown)
	assert.Equal(t, 10, cfg.PageRetry.MaxAttempts)
	assert.Equal(t, "me", cfg.Flickr.UserID)
}
