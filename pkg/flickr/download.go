package flickr

import (
	"context"
	"fmt"
	"io"
	"net/http"

	errs "flickrmirror/pkg/errors"
)

const opDownload = "download"

// DownloadResult describes a finished binary transfer
type DownloadResult struct {
	Bytes    int64
	Attempts int
	// CooledDown is set when a rate-limit cool-down preceded the final attempt
	CooledDown bool
}

// DownloadBinary streams the file at rawURL into w.
//
// A 429 answer triggers one cool-down followed by exactly one more attempt;
// any other failure, or a second failure after the cool-down, is returned
// to the caller as a skip. A successful transfer is followed by a courtesy
// pause, which cannot fail the transfer. Nothing is written to w unless the
// server answered 2xx.
func (c *Client) DownloadBinary(ctx context.Context, rawURL string, w io.Writer) (DownloadResult, error) {
	var result DownloadResult

	for {
		result.Attempts++
		n, err := c.downloadOnce(ctx, rawURL, w)
		result.Bytes = n

		switch errs.KindOf(err) {
		case errs.KindSuccess:
			// the transfer is complete; a cancelled pause must not discard it
			_ = c.pacer.Courtesy(ctx)
			return result, nil

		case errs.KindRateLimited:
			if result.CooledDown {
				return result, fmt.Errorf("still rate limited after cool-down: %w", err)
			}
			if cerr := c.pacer.Cooldown(ctx, opDownload); cerr != nil {
				return result, cerr
			}
			result.CooledDown = true

		default:
			return result, err
		}
	}
}

func (c *Client) downloadOnce(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errs.Wrap(errs.KindFatal, opDownload, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, errs.Wrap(errs.KindFatal, opDownload, fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.doRequest(req, opDownload)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp, opDownload); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		c.logger.WarnWithFields("binary transfer interrupted", map[string]interface{}{
			"bytes": n,
			"error": err.Error(),
		})
		return n, errs.Wrap(errs.KindRetryable, opDownload, fmt.Errorf("transfer interrupted after %d bytes: %w", n, err))
	}
	return n, nil
}
