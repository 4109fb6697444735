package heavens

import (
	"errors"
	"fmt"
)

// ErrInvalidFormat is returned when a clock string is not HH:MM:SS.
var ErrInvalidFormat = errors.New("invalid timestamp format")

// ErrEmptyTable is the cause of a FetchError when a page parsed to zero rows.
var ErrEmptyTable = errors.New("table has no rows")

// FetchError reports a failed table retrieval: transport, status, body,
// parse or empty-result failures all surface as this type.
type FetchError struct {
	Source string
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s table from %s: %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
