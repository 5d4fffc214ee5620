package session

import "errors"

var (
	// ErrExpired indicates the portal rejected navigation because the
	// server-side session died before the local budget elapsed.
	ErrExpired = errors.New("portal session expired")

	// ErrUnrecoverable indicates login failed through every configured
	// attempt; the run cannot continue.
	ErrUnrecoverable = errors.New("could not establish portal session")
)
