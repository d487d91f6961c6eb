package images

import "errors"

// Sentinel errors for snapshot storage.
var (
	ErrInvalidImage = errors.New("invalid image data url")
	ErrNoFreeName   = errors.New("no free image file name")
)
