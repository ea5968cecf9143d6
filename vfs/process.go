package vfs

import (
	"bytes"
	"sync"
)

// ProcessHandler receives the output of a command started through Exec.
type ProcessHandler interface {
	OnOut(p []byte) error
	OnErr(p []byte) error
}

// BufferedProcessHandler collects stdout and stderr in memory.
type BufferedProcessHandler struct {
	mu     sync.Mutex
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (h *BufferedProcessHandler) OnOut(p []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.stdout.Write(p)
	return err
}

func (h *BufferedProcessHandler) OnErr(p []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.stderr.Write(p)
	return err
}

func (h *BufferedProcessHandler) Stdout() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.stdout.String()
}

func (h *BufferedProcessHandler) Stderr() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.stderr.String()
}
