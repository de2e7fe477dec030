package match

import "errors"

var (
	// ErrInvalidTeam rejects team identifiers other than "home" or "away".
	ErrInvalidTeam = errors.New("invalid team")

	// ErrInvalidDuration rejects duration strings that are not MM:SS.
	ErrInvalidDuration = errors.New("invalid duration")
)
