package models

import "errors"

var (
	// ErrOutOfOrderBar rejects an append whose bars are not strictly newer
	// than the stored series. The offending batch is never partially applied.
	ErrOutOfOrderBar = errors.New("out of order bar")

	// ErrInsufficientHistory marks an instrument that lacks a full EMA
	// period of bars. Not a fault: the instrument stays warming up and is
	// retried on the next scheduled run.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrFetchExhausted is returned once the bounded retry budget for one
	// instrument's fetch is spent.
	ErrFetchExhausted = errors.New("fetch attempts exhausted")

	// ErrRunActive rejects an update trigger while a run is in flight.
	ErrRunActive = errors.New("update run already active")

	// ErrNoEntry is returned by snapshot lookups for unknown instruments.
	ErrNoEntry = errors.New("no cache entry")
)
