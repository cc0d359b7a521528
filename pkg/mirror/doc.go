// Package mirror keeps a local directory in sync with a Flickr photo collection.
//
// The Engine walks the catalog page by page through an Enumerator and hands
// every item, in provider order, to a Syncer. For each item the Syncer makes
// sure two artifacts exist in the destination directory:
//
//	{id}.{format}   the original file, downloaded from url_o
//	{id}.json       the metadata sidecar built by metadata.Assembler
//
// Presence of a file is the only completion marker, so an interrupted run
// can simply be started again. Artifacts already on disk are never fetched a
// second time, and a failed artifact never blocks the other one.
//
// Architecture:
//
//	Engine ─► Enumerator ─► flickr.photos.search (retried with backoff)
//	   │
//	   └────► Syncer ─► Client.DownloadBinary ─► storage.Ledger
//	              └───► metadata.Assembler   ─► storage.Ledger
//
// Usage:
//
//	engine, err := mirror.NewFromConfig(cfg, client, afero.NewOsFs(), mirror.Options{
//	    Checkpoints: checkpoints,
//	    Observer:    progress,
//	})
//	if err != nil {
//	    return err
//	}
//	summary, err := engine.Run(ctx)
//
// Pagination:
//
// Enumeration stops at the first empty page or once the current page reaches
// the reported page count. A page that keeps failing after the configured
// retries stops the run with ErrEnumerationStalled; the page number is saved
// as a checkpoint so the next run can start there.
package mirror
