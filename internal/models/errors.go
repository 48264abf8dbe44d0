package models

import "errors"

// ErrSourceUnavailable marks a network or 5xx failure from an upstream
// provider. Fatal when the stats source raises it; the builder degrades
// and continues when the odds source does.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrMalformedData marks an upstream payload that did not have the
// expected shape. Handled at the smallest granularity possible: the
// offending game or quote is skipped, never the whole batch.
var ErrMalformedData = errors.New("malformed source data")
