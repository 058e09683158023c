package types

import "errors"

var (
	ErrNoImage               = errors.New("no image provided")
	ErrInvalidImage          = errors.New("invalid or unsupported image")
	ErrImageTooSmall         = errors.New("image too small")
	ErrClassifierUnavailable = errors.New("classifier not configured")
	ErrClassification        = errors.New("classification failed")
	ErrNoPredictions         = errors.New("classifier returned no predictions")
	ErrGeneratorUnavailable  = errors.New("remedy generator not configured")
	ErrGeneration            = errors.New("remedy generation failed")
)
