package diagnostics

import (
	"fmt"
	"sync"
	"time"
)

// Severity classifies a report.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// defaultRingSize is the number of entries a Journal retains.
const defaultRingSize = 256

// Reporter accepts failure reports. Implementations must not panic or block
// indefinitely.
type Reporter interface {
	Report(severity Severity, message string, args ...any)
}

// Logger is the logging interface used by the Journal.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Recorder persists entries outside the process (e.g. a time-series DB).
type Recorder interface {
	RecordDiagnostic(entry Entry)
}

// Entry is one stored report.
type Entry struct {
	Time     time.Time         `json:"time"`
	Severity Severity          `json:"severity"`
	Message  string            `json:"message"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// Journal is the production Reporter.
//
// Thread Safety: all methods are safe for concurrent use.
type Journal struct {
	logger   Logger
	recorder Recorder
	now      func() time.Time

	mu     sync.Mutex
	ring   []Entry
	next   int
	full   bool
	counts map[Severity]int
}

// Option configures a Journal.
type Option func(*Journal)

// WithRecorder forwards every entry to r.
func WithRecorder(r Recorder) Option {
	return func(j *Journal) { j.recorder = r }
}

// WithCapacity sets how many recent entries are retained.
func WithCapacity(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.ring = make([]Entry, n)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// NewJournal creates a Journal that logs through logger. A nil logger
// disables logging.
func NewJournal(logger Logger, opts ...Option) *Journal {
	j := &Journal{
		logger: logger,
		now:    time.Now,
		ring:   make([]Entry, defaultRingSize),
		counts: make(map[Severity]int),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Report implements Reporter.
func (j *Journal) Report(severity Severity, message string, args ...any) {
	entry := Entry{
		Time:     j.now().UTC(),
		Severity: severity,
		Message:  message,
		Attrs:    attrsFromArgs(args),
	}

	j.log(severity, message, args)

	j.mu.Lock()
	j.ring[j.next] = entry
	j.next = (j.next + 1) % len(j.ring)
	if j.next == 0 {
		j.full = true
	}
	j.counts[severity]++
	j.mu.Unlock()

	j.record(entry)
}

func (j *Journal) log(severity Severity, message string, args []any) {
	if j.logger == nil {
		return
	}
	switch severity {
	case SeverityError:
		j.logger.Error(message, args...)
	case SeverityWarning:
		j.logger.Warn(message, args...)
	default:
		j.logger.Info(message, args...)
	}
}

// record forwards to the recorder, swallowing panics so a broken recorder
// cannot take down a dispatch path.
func (j *Journal) record(entry Entry) {
	if j.recorder == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && j.logger != nil {
			j.logger.Error("diagnostics recorder panic recovered", "panic", r)
		}
	}()
	j.recorder.RecordDiagnostic(entry)
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns
// every retained entry.
func (j *Journal) Recent(limit int) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	size := j.next
	if j.full {
		size = len(j.ring)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]Entry, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (j.next - 1 - i + len(j.ring)) % len(j.ring)
		out = append(out, j.ring[idx])
	}
	return out
}

// Counts returns the number of reports per severity since creation.
func (j *Journal) Counts() map[Severity]int {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[Severity]int, len(j.counts))
	for k, v := range j.counts {
		out[k] = v
	}
	return out
}

// attrsFromArgs converts slog-style key/value pairs to strings. A trailing
// key without a value is stored under "!BADKEY", as slog does.
func attrsFromArgs(args []any) map[string]string {
	if len(args) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			attrs["!BADKEY"] = fmt.Sprint(args[i])
			break
		}
		attrs[fmt.Sprint(args[i])] = fmt.Sprint(args[i+1])
	}
	return attrs
}

// nopReporter discards every report.
type nopReporter struct{}

func (nopReporter) Report(Severity, string, ...any) {}

// Nop returns a Reporter that discards every report.
func Nop() Reporter {
	return nopReporter{}
}
