package event

import "errors"

var (
	ErrMissingPath = errors.New("missing path")

	ErrMissingVisitorID = errors.New("missing visitor id")

	ErrMissingSessionID = errors.New("missing session id")

	ErrInvalidCategory = errors.New("invalid request category")
)
