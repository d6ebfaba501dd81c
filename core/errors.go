package core

import "errors"

var (
	ErrMissingUpstream = errors.New("teknoro: contact upstream URL is not configured")
	ErrInvalidUpstream = errors.New("teknoro: contact upstream URL is invalid")
	ErrInvalidTimeout  = errors.New("teknoro: contact timeout is invalid")
	ErrUpstreamStatus  = errors.New("teknoro: upstream returned an error status")
	ErrInvalidRoute    = errors.New("teknoro: invalid route")
)

// IsConfigError reports whether err came from Config.Validate.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingUpstream) ||
		errors.Is(err, ErrInvalidUpstream) ||
		errors.Is(err, ErrInvalidTimeout)
}

func IsInvalidRouteError(err error) bool {
	return errors.Is(err, ErrInvalidRoute)
}
