// Package channel defines the publish API surface of the remote channels
// and the error type they raise. Two shapes exist: synchronous channels
// return a remote id from a single submit call; asynchronous channels stage
// a container that must finish remote processing before a final publish.
package channel

import (
	"context"
	"errors"
	"fmt"

	"dealcast/internal/format"
	"dealcast/internal/models"
)

// ProcessingStatus is the remote state of a staged container.
type ProcessingStatus int

const (
	StatusInProgress ProcessingStatus = iota
	StatusFinished
	StatusError
)

func (s ProcessingStatus) String() string {
	switch s {
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusFinished:
		return "FINISHED"
	case StatusError:
		return "ERROR"
	}
	return fmt.Sprintf("ProcessingStatus(%d)", int(s))
}

// ErrEmptyCarousel rejects a carousel publish with no media items.
var ErrEmptyCarousel = errors.New("carousel has no media items")

// Error is a remote API rejection. Items hitting one are skipped; the
// cycle continues.
type Error struct {
	Channel models.Channel
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Channel, e.Code, e.Message)
}

// SyncAPI is the single-call publish shape.
type SyncAPI interface {
	Submit(ctx context.Context, p format.Payload) (remoteID string, err error)
}

// AsyncAPI is the container/poll/publish shape.
type AsyncAPI interface {
	CreateContainer(ctx context.Context, p format.Payload) (containerID string, err error)
	Status(ctx context.Context, containerID string) (ProcessingStatus, error)
	Publish(ctx context.Context, containerID string) (remoteID string, err error)
}

// CarouselAPI extends AsyncAPI with a combining group container for
// multi-media posts.
type CarouselAPI interface {
	AsyncAPI
	CreateGroup(ctx context.Context, children []string, p format.Payload) (containerID string, err error)
}
