package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")

	// ErrSwapchainOutOfDate is returned by acquire and present when the surface
	// no longer matches the swapchain. It is transient: recreate and retry next tick.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	ErrPassExpired        = errors.New("pass handle used after its phase ended")
	ErrFrameAborted       = errors.New("frame aborted by an earlier error")
	ErrUnknownMesh        = errors.New("unknown mesh handle")
	ErrInvalidExtent      = errors.New("invalid extent")
	ErrUnsupported        = errors.New("operation not supported by backend")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// IsTransient reports whether err only means "skip this tick and try again".
func IsTransient(err error) bool {
	return errors.Is(err, ErrSwapchainOutOfDate) || errors.Is(err, ErrSwapchainBooting)
}
