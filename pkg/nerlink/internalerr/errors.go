package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrDatasetNotFound  = errors.New("dataset not found")
	ErrMalformedDataset = errors.New("malformed dataset")
	ErrModelUnavailable = errors.New("model service unavailable")
	ErrResponseParse    = errors.New("response does not match schema")
	ErrInvalidConfig    = errors.New("invalid configuration")
)
