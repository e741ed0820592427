// Package notify defines the notification capability the capture pipeline
// reports through. The UI owns presentation; the pipeline only emits.
package notify

import "github.com/nvr-ai/go-capture/logger"

// Sink receives user-facing notifications from the pipeline.
//
// Implementations must be safe for concurrent use; the detection poller
// publishes from its request goroutine.
type Sink interface {
	NotifySuccess(msg string)
	NotifyError(msg string)
}

// LogSink is the default Sink, writing notifications to the structured log.
type LogSink struct{}

func (LogSink) NotifySuccess(msg string) {
	logger.WithField("notification", "success").Info(msg)
}

func (LogSink) NotifyError(msg string) {
	logger.WithField("notification", "error").Error(msg)
}

// Discard drops all notifications.
type Discard struct{}

func (Discard) NotifySuccess(string) {}
func (Discard) NotifyError(string)   {}
