package bus

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Token identifies one subscription. Tokens are never reused: once a
// subscription is removed its token stays dead.
type Token uuid.UUID

// String returns the canonical UUID form of the token.
func (t Token) String() string {
	return uuid.UUID(t).String()
}

// IsZero reports whether t is the zero token.
func (t Token) IsZero() bool {
	return t == Token{}
}

// Handler receives one envelope. A returned error is reported and does not
// affect other handlers or the publisher.
type Handler func(ctx context.Context, env Envelope) error

// Subscription is a registered interest in a payload kind and context.
type Subscription struct {
	Token   Token
	Kind    *Kind
	Context string
	Handler Handler
}

// Matches reports whether the subscription accepts an envelope of the given
// kind and context.
func (s Subscription) Matches(kind *Kind, context string) bool {
	if kind == nil || !kind.Is(s.Kind) {
		return false
	}
	return contextMatches(s.Context, context)
}

// contextMatches applies the context filter rule: an empty filter or an
// absent envelope context matches, otherwise the envelope context must
// contain the filter.
func contextMatches(filter, context string) bool {
	if filter == "" {
		return true
	}
	context = strings.TrimSpace(context)
	if context == "" {
		return true
	}
	return strings.Contains(context, filter)
}

// snapshot is an immutable copy of the subscription list stamped with the
// revision it was built from.
type snapshot struct {
	revision uint64
	subs     []Subscription
}

// Registry holds the authoritative subscription list.
//
// Writers serialise on a mutex and bump the revision. Readers get an
// immutable snapshot which is rebuilt only when the revision has moved, so
// the delivery path takes no lock while the set is unchanged.
type Registry struct {
	mu       sync.Mutex
	subs     []Subscription
	revision atomic.Uint64
	cache    atomic.Pointer[snapshot]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a subscription and returns its token. A nil kind subscribes
// to KindAny. The filter is trimmed of whitespace.
func (r *Registry) Register(kind *Kind, handler Handler, filter string) Token {
	if kind == nil {
		kind = KindAny
	}
	token := Token(uuid.New())
	sub := Subscription{
		Token:   token,
		Kind:    kind,
		Context: strings.TrimSpace(filter),
		Handler: handler,
	}

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.revision.Add(1)
	r.mu.Unlock()

	return token
}

// Unregister removes the subscription for token. It reports whether a
// subscription was removed; a dead or unknown token is a no-op.
func (r *Registry) Unregister(token Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.IndexFunc(r.subs, func(s Subscription) bool { return s.Token == token })
	if idx < 0 {
		return false
	}
	r.subs = slices.Delete(r.subs, idx, idx+1)
	r.revision.Add(1)
	return true
}

// Clear removes every subscription.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.subs = nil
	r.revision.Add(1)
	r.mu.Unlock()
}

// IsRegistered reports whether token identifies a live subscription.
func (r *Registry) IsRegistered(token Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.ContainsFunc(r.subs, func(s Subscription) bool { return s.Token == token })
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Revision returns the current mutation counter.
func (r *Registry) Revision() uint64 {
	return r.revision.Load()
}

// CurrentSnapshot returns every live subscription in registration order.
//
// The returned slice is shared with other readers and must not be modified.
// When the revision is unchanged since the last rebuild the cached slice is
// returned without locking or allocating.
func (r *Registry) CurrentSnapshot() []Subscription {
	if s := r.cache.Load(); s != nil && s.revision == r.revision.Load() {
		return s.subs
	}

	r.mu.Lock()
	fresh := &snapshot{
		revision: r.revision.Load(),
		subs:     slices.Clone(r.subs),
	}
	r.mu.Unlock()

	// Concurrent rebuilders may race here; never replace a newer snapshot
	// with an older one.
	for {
		cur := r.cache.Load()
		if cur != nil && cur.revision >= fresh.revision {
			break
		}
		if r.cache.CompareAndSwap(cur, fresh) {
			break
		}
	}
	return fresh.subs
}

// Matching returns the subscriptions that accept an envelope of kind and
// context, in registration order.
func (r *Registry) Matching(kind *Kind, context string) []Subscription {
	all := r.CurrentSnapshot()
	var matched []Subscription
	for i := range all {
		if all[i].Matches(kind, context) {
			matched = append(matched, all[i])
		}
	}
	return matched
}
