package resolution

import "errors"

var (
	// ErrWorkflowTimeout: the execution was abandoned at its deadline without a terminal write.
	ErrWorkflowTimeout = errors.New("resolution: workflow timed out")

	// ErrDeviceTimeout: the device request outlived its wait budget.
	ErrDeviceTimeout = errors.New("resolution: device wait budget exceeded")

	// ErrUnknownDomain: no engine is registered for the request's domain.
	ErrUnknownDomain = errors.New("resolution: unknown domain")
)
