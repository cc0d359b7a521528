// Package storage is the mirror's idempotency ledger.
//
// The destination directory itself is the source of truth: an item's
// original is complete once {id}.{format} exists and its sidecar once
// {id}.json exists. Both are written to temporary names first and renamed
// into place, so a finalized name never refers to a partial file.
//
// Usage:
//
//	ledger, err := storage.NewLedger(afero.NewOsFs(), "downloads", 0755, 0644)
//	done, err := ledger.HasBinary("52345", "jpg")
//	n, err := ledger.SaveBinary("52345", "jpg", func(w io.Writer) error {
//		_, err := client.DownloadBinary(ctx, url, w)
//		return err
//	})
package storage
