package session

import (
	"errors"
	"fmt"
)

// ResolveErrorKind classifies why the resolver could not produce a playable
// file for a query.
type ResolveErrorKind int

const (
	ResolveNotFound ResolveErrorKind = iota
	ResolveNetwork
	ResolveUnplayable
	ResolveRestricted
)

func (k ResolveErrorKind) String() string {
	switch k {
	case ResolveNotFound:
		return "not found"
	case ResolveNetwork:
		return "network failure"
	case ResolveUnplayable:
		return "unplayable"
	case ResolveRestricted:
		return "restricted"
	}
	return "unknown"
}

type ResolveError struct {
	Kind   ResolveErrorKind
	Reason string
}

func (e *ResolveError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("resolve failed: %s", e.Kind)
	}
	return fmt.Sprintf("resolve failed (%s): %s", e.Kind, e.Reason)
}

var (
	// ErrClosed is returned for operations on a session that has been torn down.
	ErrClosed = errors.New("session is closed")

	ErrNotPlaying = errors.New("nothing is playing")
	ErrNotPaused  = errors.New("playback is not paused")

	// ErrChannelOccupied rejects a voice-channel move whose target already
	// holds human listeners besides the requester.
	ErrChannelOccupied = errors.New("target channel already has listeners")
)
