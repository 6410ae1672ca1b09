// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	"audioviz/internal/log"
)

// LoggingTransport implements the Transport interface by logging a one-line
// summary of every payload at debug level.
type LoggingTransport struct {
	sent atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Info("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	n := lt.sent.Add(1)
	if s, ok := data.(Summarizer); ok {
		log.Debugf("Transport: #%d %s", n, s.Summary())
		return nil
	}
	log.Debugf("Transport: #%d (%T)", n, data)
	return nil
}

// Sent returns how many payloads were logged.
func (lt *LoggingTransport) Sent() uint64 {
	return lt.sent.Load()
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	log.Debugf("Transport: LoggingTransport closed after %d payloads", lt.sent.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
