package bus

import (
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-automation/internal/diagnostics"
)

// ─── Test Kinds ─────────────────────────────────────────────────────────────

var (
	kindBase    = NewKind("base", nil)
	kindDerived = NewKind("derived", kindBase)
	kindLeaf    = NewKind("leaf", kindDerived)
	kindSibling = NewKind("sibling", kindBase)
	kindOther   = NewKind("other", nil)
)

type basePayload struct{ Value int }

func (basePayload) Kind() *Kind { return kindBase }

type derivedPayload struct{ Value int }

func (derivedPayload) Kind() *Kind { return kindDerived }

type leafPayload struct{ Value int }

func (leafPayload) Kind() *Kind { return kindLeaf }

type siblingPayload struct{}

func (siblingPayload) Kind() *Kind { return kindSibling }

type otherPayload struct{}

func (otherPayload) Kind() *Kind { return kindOther }

// ─── Mock Reporter ──────────────────────────────────────────────────────────

type report struct {
	Severity diagnostics.Severity
	Message  string
	Args     []any
}

type mockReporter struct {
	mu      sync.Mutex
	reports []report
}

func (m *mockReporter) Report(severity diagnostics.Severity, message string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report{Severity: severity, Message: message, Args: args})
}

func (m *mockReporter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

func (m *mockReporter) all() []report {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]report, len(m.reports))
	copy(out, m.reports)
	return out
}

// arg returns the value following key in a report's args.
func (r report) arg(key string) string {
	for i := 0; i+1 < len(r.Args); i += 2 {
		if r.Args[i] == key {
			return fmt.Sprint(r.Args[i+1])
		}
	}
	return ""
}
