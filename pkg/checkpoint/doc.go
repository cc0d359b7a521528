// Package checkpoint remembers where catalog enumeration gave up.
//
// When a page cannot be fetched after the configured retries the mirror
// records the page number here; `flickrmirror mirror --resume` starts from
// it instead of page one. Checkpoints live under $XDG_DATA_HOME/flickrmirror
// (or the platform equivalent) and are written atomically.
package checkpoint
