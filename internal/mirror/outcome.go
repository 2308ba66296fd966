package mirror

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"pbimirror/internal/datefilter"
)

// SkipReason explains why a file item was not written.
type SkipReason int

const (
	ReasonNone SkipReason = iota
	ReasonOutOfRange
	ReasonUnparsableDate
	ReasonHTTPError
	ReasonWriteError
)

var reasonNames = map[SkipReason]string{
	ReasonNone:           "none",
	ReasonOutOfRange:     "out_of_range",
	ReasonUnparsableDate: "unparsable_date",
	ReasonHTTPError:      "http_error",
	ReasonWriteError:     "write_error",
}

func (r SkipReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the reason by name
func (r SkipReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a reason name written by MarshalText
func (r *SkipReason) UnmarshalText(text []byte) error {
	for reason, name := range reasonNames {
		if name == string(text) {
			*r = reason
			return nil
		}
	}
	return fmt.Errorf("unknown skip reason %q", text)
}

// Outcome is the result of one download-and-filter call.
type Outcome struct {
	ItemID       string     `json:"item_id"`
	Filename     string     `json:"filename"`
	Path         string     `json:"path"`
	Date         time.Time  `json:"date"`
	Succeeded    bool       `json:"succeeded"`
	Reason       SkipReason `json:"reason"`
	BytesWritten int        `json:"bytes_written"`
	Err          error      `json:"-"`
}

// Label is "succeeded" or the skip reason, used for metrics and exports.
func (o Outcome) Label() string {
	if o.Succeeded {
		return "succeeded"
	}
	return o.Reason.String()
}

// ErrorMessage returns the failure text, or "" when there is none.
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// MarshalJSON adds the error text to the encoded outcome
func (o Outcome) MarshalJSON() ([]byte, error) {
	type plain Outcome
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(o), Error: o.ErrorMessage()})
}

// Counts tallies a run.
type Counts struct {
	Items          int   `json:"items"`
	Folders        int   `json:"folders"`
	Files          int   `json:"files"`
	Downloaded     int   `json:"downloaded"`
	OutOfRange     int   `json:"out_of_range"`
	UnparsableDate int   `json:"unparsable_date"`
	HTTPErrors     int   `json:"http_errors"`
	WriteErrors    int   `json:"write_errors"`
	ListFailures   int   `json:"list_failures"`
	Malformed      int   `json:"malformed"`
	UnknownKind    int   `json:"unknown_kind"`
	Rejected       int   `json:"rejected"`
	Duplicates     int   `json:"duplicates"`
	BytesWritten   int64 `json:"bytes_written"`
}

// Summary is a point-in-time copy of a Report.
type Summary struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Finished   bool             `json:"finished"`
	Canceled   bool             `json:"canceled"`
	Range      datefilter.Range `json:"range"`
	Counts     Counts           `json:"counts"`
	Outcomes   []Outcome        `json:"outcomes"`
}

// Report accumulates the results of one walk. It is safe for concurrent
// readers while the walk is running.
type Report struct {
	mu       sync.Mutex
	summary  Summary
	outcomes []Outcome
}

// NewReport starts an empty report for a run.
func NewReport(runID string, rng datefilter.Range) *Report {
	return &Report{summary: Summary{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Range:     rng,
	}}
}

// Snapshot returns a copy of the report's current state.
func (r *Report) Snapshot() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.summary
	s.Outcomes = make([]Outcome, len(r.outcomes))
	copy(s.Outcomes, r.outcomes)
	return s
}

func (r *Report) update(fn func(c *Counts)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.summary.Counts)
}

func (r *Report) item() { r.update(func(c *Counts) { c.Items++ }) }
func (r *Report) folder() { r.update(func(c *Counts) { c.Folders++ }) }
func (r *Report) listFailure() { r.update(func(c *Counts) { c.ListFailures++ }) }
func (r *Report) unknownKind() { r.update(func(c *Counts) { c.UnknownKind++ }) }
func (r *Report) rejected() { r.update(func(c *Counts) { c.Rejected++ }) }
func (r *Report) duplicate() { r.update(func(c *Counts) { c.Duplicates++ }) }
func (r *Report) folderWriteError() { r.update(func(c *Counts) { c.WriteErrors++ }) }

func (r *Report) malformed(n int) { r.update(func(c *Counts) { c.Malformed += n }) }

func (r *Report) record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &r.summary.Counts
	c.Files++
	switch {
	case o.Succeeded:
		c.Downloaded++
		c.BytesWritten += int64(o.BytesWritten)
	case o.Reason == ReasonOutOfRange:
		c.OutOfRange++
	case o.Reason == ReasonUnparsableDate:
		c.UnparsableDate++
	case o.Reason == ReasonHTTPError:
		c.HTTPErrors++
	case o.Reason == ReasonWriteError:
		c.WriteErrors++
	}
	r.outcomes = append(r.outcomes, o)
}

func (r *Report) finish(canceled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.FinishedAt = time.Now().UTC()
	r.summary.Finished = true
	r.summary.Canceled = canceled
}
