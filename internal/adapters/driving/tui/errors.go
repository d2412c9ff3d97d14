package tui

import "errors"

// ErrMissingProjectService is returned when the project service is not provided.
var ErrMissingProjectService = errors.New("tui: project service is required")

// ErrMissingJobService is returned when the job service is not provided.
var ErrMissingJobService = errors.New("tui: job service is required")

// ErrMissingQueueService is returned when the queue service is not provided.
var ErrMissingQueueService = errors.New("tui: queue service is required")
