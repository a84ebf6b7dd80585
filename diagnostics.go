package cdengine

import (
	"log"
	"time"

	"golang.org/x/time/rate"
)

// diagnostics logs recoverable failures. A struggling scene fails every
// tick, so messages are throttled.
type diagnostics struct {
	logger    *log.Logger
	sometimes rate.Sometimes
}

func newDiagnostics(logger *log.Logger, perSecond float64) *diagnostics {
	if logger == nil || perSecond <= 0 {
		return &diagnostics{}
	}
	return &diagnostics{
		logger:    logger,
		sometimes: rate.Sometimes{First: 1, Interval: time.Duration(float64(time.Second) / perSecond)},
	}
}

func (d *diagnostics) warnf(format string, args ...any) {
	if d == nil || d.logger == nil {
		return
	}
	d.sometimes.Do(func() {
		d.logger.Printf(format, args...)
	})
}
