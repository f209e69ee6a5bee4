package contract

import "errors"

var (
	ErrValidation = errors.New("validation failed")
	ErrGenerate   = errors.New("reply generation failed")
	ErrRetrieve   = errors.New("knowledge lookup failed")
)
