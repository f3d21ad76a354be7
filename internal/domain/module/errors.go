package module

import (
	"errors"
	"fmt"
)

// Module creation errors.
var (
	// ErrAlreadyExists is returned when a catalog URL is already registered.
	ErrAlreadyExists = errors.New("module already exists")

	// ErrInvalidName is returned when a descriptor has no usable name.
	ErrInvalidName = errors.New("invalid module name")

	// ErrInvalidCatalogURL is returned for malformed or non-http(s) catalog URLs.
	ErrInvalidCatalogURL = errors.New("invalid catalog url")
)

// Module loading errors.
var (
	// ErrNotFound is returned when no record has the requested identifier.
	ErrNotFound = errors.New("module not found")

	// ErrDecode is returned when a catalog or descriptor document cannot be decoded.
	ErrDecode = errors.New("module decode error")

	// ErrMissingScriptPath is returned when a record or descriptor has no script location,
	// or its cached script is absent and has not been revalidated.
	ErrMissingScriptPath = errors.New("module script path missing")

	// ErrDownload is returned when a script or descriptor download fails.
	ErrDownload = errors.New("module download error")

	// ErrInvalidScriptFormat is returned when downloaded content is not decodable text.
	ErrInvalidScriptFormat = errors.New("invalid module script format")
)

// DownloadError carries the failing URL and, when the server answered, its status.
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("download %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

// Is lets errors.Is(err, ErrDownload) match.
func (e *DownloadError) Is(target error) bool {
	return target == ErrDownload
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
