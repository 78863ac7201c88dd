package eventsync

import (
	"errors"
	"fmt"

	"github.com/eventfinder/agent/internal/remote"
	"github.com/eventfinder/agent/internal/storage"
)

// Failure kinds reported by coordinator operations. Match with errors.Is.
var (
	ErrUnreachable     = errors.New("remote source unreachable")
	ErrRemoteRejected  = errors.New("remote source rejected the request")
	ErrLocalStore      = errors.New("local store failure")
	ErrNotFound        = errors.New("event not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrClosed          = errors.New("coordinator closed")
)

// remoteFailure classifies an error returned by the remote source.
func remoteFailure(op string, err error) error {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	case errors.Is(err, remote.ErrNetwork):
		return fmt.Errorf("%s: %w: %w", op, ErrUnreachable, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrRemoteRejected, err)
	}
}

// localFailure classifies an error returned by the local store.
func localFailure(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrLocalStore, err)
}
