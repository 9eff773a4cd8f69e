package main

import (
	"errors"
	"fmt"
)

// ErrNoRedirect is returned by ResolveNested when the filehost page was
// fetched successfully but no redirect target could be extracted from it.
// Callers treat it as "nothing here", not as a transport failure.
var ErrNoRedirect = errors.New("no redirect target found in page")

// FetchError reports a failed page or resource fetch: either a transport
// error (Err set) or a non-2xx response (Status set).
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DownloadError reports a stream that broke after the response headers
// were already accepted. The partial temp file is left behind; the final
// destination name is never created.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
