package models

import (
	"errors"
	"sync"
)

var ErrHandleReleased = errors.New("preview handle released")

// PreviewHandle is a revocable in-memory reference to a submitted file's
// bytes. Release drops the buffer so the memory is reclaimable; any later
// Bytes call fails with ErrHandleReleased.
type PreviewHandle struct {
	mu       sync.Mutex
	data     []byte
	released bool
}

func NewPreviewHandle(data []byte) *PreviewHandle {
	return &PreviewHandle{data: data}
}

func (h *PreviewHandle) Bytes() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, ErrHandleReleased
	}
	return h.data, nil
}

// Release is idempotent at the handle level; the intake guarantees it is
// invoked exactly once per handle.
func (h *PreviewHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = true
	h.data = nil
}

func (h *PreviewHandle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}
