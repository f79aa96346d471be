package recording

import (
	"errors"

	"vodwatch/internal/services"
)

var (
	// ErrAtCapacity is returned by Admit when max_concurrent sessions are active.
	ErrAtCapacity = errors.New("recording capacity reached")
	// ErrAlreadyActive is returned by Admit when the channel already has a session.
	ErrAlreadyActive = errors.New("channel already recording")
	// ErrNotFound is returned by Stop when the channel has no session.
	ErrNotFound = services.ErrNotFound
)
