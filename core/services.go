package core

import "time"

type (
	// Logger is any service that can log & report app events.
	// args may contain errors and map[string]interface{} extras.
	Logger interface {
		Debug(msg string, args ...interface{})
		Info(msg string, args ...interface{})
		Warn(msg string, args ...interface{})
		Error(msg string, args ...interface{})
		Fatal(msg string, args ...interface{})
	}

	// Metrics is any service that records app measurements.
	Metrics interface {
		ObserveRequest(method, route string, status int, elapsed time.Duration)
		ObserveMutation(kind, op, outcome string)
	}
)
