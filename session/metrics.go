package session

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
)

// Structs

// Metrics bundles the counters a session feeds. Construction with
// real backends happens in the binary, the library only increments
// through the go-kit facade.
type Metrics struct {
	Commands         metrics.Counter
	Responses        metrics.Counter
	Timeouts         metrics.Counter
	TLSRetries       metrics.Counter
	ConnectionLosses metrics.Counter
}

// Functions

// NewNopMetrics returns a metrics set that discards every value.
func NewNopMetrics() *Metrics {
	return &Metrics{
		Commands:         discard.NewCounter(),
		Responses:        discard.NewCounter(),
		Timeouts:         discard.NewCounter(),
		TLSRetries:       discard.NewCounter(),
		ConnectionLosses: discard.NewCounter(),
	}
}
