package dispatch

import "errors"

// Sentinel errors for the dispatch package.
var (
	// ErrQueueFull is returned when a worker queue is at its limit.
	// Dispatchers recover from it by replacing the worker.
	ErrQueueFull = errors.New("worker queue is full")

	// ErrWorkerClosed is returned when pushing to a closed worker.
	ErrWorkerClosed = errors.New("worker is closed")
)
