package engine

import (
	"fmt"
	"strings"
	"sync"
)

// Aggregator accumulates probe results for one run: per-category totals and
// an append-only event log. Both structures are guarded by their own mutex;
// critical sections cover the mutation only, never a remote call.
type Aggregator struct {
	totalsMu sync.Mutex
	totals   map[string]int

	logMu sync.Mutex
	log   []Result
}

// NewAggregator returns an aggregator with every category zeroed.
func NewAggregator() *Aggregator {
	totals := make(map[string]int, len(Categories()))
	for _, c := range Categories() {
		totals[c] = 0
	}
	return &Aggregator{totals: totals}
}

// Record adds the result's count to its category total and appends the
// result to the event log. No policy lives here; probes decide what counts.
func (a *Aggregator) Record(r Result) {
	a.totalsMu.Lock()
	a.totals[r.Category] += r.Count
	a.totalsMu.Unlock()

	a.logMu.Lock()
	a.log = append(a.log, r)
	a.logMu.Unlock()
}

// Totals returns a copy of the category totals.
func (a *Aggregator) Totals() map[string]int {
	a.totalsMu.Lock()
	defer a.totalsMu.Unlock()
	out := make(map[string]int, len(a.totals))
	for k, v := range a.totals {
		out[k] = v
	}
	return out
}

// Total returns the running sum for one category.
func (a *Aggregator) Total(category string) int {
	a.totalsMu.Lock()
	defer a.totalsMu.Unlock()
	return a.totals[category]
}

// Events returns a copy of the event log in completion order.
func (a *Aggregator) Events() []Result {
	a.logMu.Lock()
	defer a.logMu.Unlock()
	out := make([]Result, len(a.log))
	copy(out, a.log)
	return out
}

// ErrorRecord is one captured failure. Write-once, appended in arrival order.
type ErrorRecord struct {
	AccountID string
	Origin    string
	Message   string
}

func (e ErrorRecord) String() string {
	msg := strings.NewReplacer("\n", " ", "\r", " ").Replace(e.Message)
	if e.AccountID == "" {
		return fmt.Sprintf("ERROR: %s %s", e.Origin, msg)
	}
	return fmt.Sprintf("ERROR: Account: %s %s %s", e.AccountID, e.Origin, msg)
}

// ErrorSink collects failures without ever aborting the run.
type ErrorSink struct {
	mu      sync.Mutex
	records []ErrorRecord
}

// NewErrorSink returns an empty sink.
func NewErrorSink() *ErrorSink {
	return &ErrorSink{}
}

// Record appends one failure.
func (s *ErrorSink) Record(rec ErrorRecord) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
}

// Records returns a snapshot; meaningful once dispatch has quiesced.
func (s *ErrorSink) Records() []ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ErrorRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len reports how many failures were captured.
func (s *ErrorSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
