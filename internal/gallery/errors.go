package gallery

import "errors"

// Scheduler control-surface errors.
var (
	ErrAlreadyExists = errors.New("gallery already exists")
	ErrNotFound      = errors.New("gallery not found")
	ErrIdMismatch    = errors.New("updated state id does not match addressed id")
)

// Pipeline and store errors.
var (
	// ErrTotalScrapeFailure is returned by Stage 2 when, for every
	// marketplace present, the item-id list was non-empty and every
	// fetch failed.
	ErrTotalScrapeFailure = errors.New("total scrape failure")
	ErrStorage            = errors.New("storage error")
	ErrMessageFailure      = errors.New("message delivery failure")
)
