package domain

import "errors"

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrProviderFailure    = errors.New("provider failure")
	ErrNoImageProduced    = errors.New("no image produced")
	ErrUnsupportedMedia   = errors.New("unsupported media type")
	ErrTooLarge           = errors.New("payload too large")
)
