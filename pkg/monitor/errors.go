package monitor

import "github.com/Abraxas-365/drugcontent/pkg/errx"

var monitorErrors = errx.NewRegistry("MONITOR")

var (
	ErrUnknownQueue  = monitorErrors.Register("UNKNOWN_QUEUE", errx.TypeNotFound, "Queue is not monitored")
	ErrNotConfigured = monitorErrors.Register("NOT_CONFIGURED", errx.TypeUnavailable, "Component is not configured")
	ErrInvalidInput  = monitorErrors.Register("INVALID_INPUT", errx.TypeValidation, "Invalid request")
)

func unknownQueue(name string) *errx.Error {
	return monitorErrors.New(ErrUnknownQueue).WithDetail("queue", name)
}

func notConfigured(component string) *errx.Error {
	return monitorErrors.New(ErrNotConfigured).WithDetail("component", component)
}

func invalidInput(reason string) *errx.Error {
	return monitorErrors.NewWithMessage(ErrInvalidInput, reason)
}
