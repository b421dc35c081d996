package bus

// Kind identifies a payload type for subscription matching.
//
// Kinds are declared once, usually as package-level variables, and compared
// by pointer identity. Each kind except KindAny has exactly one parent.
type Kind struct {
	name   string
	parent *Kind
}

// KindAny is the root of every kind chain. A subscription declared for
// KindAny receives every envelope.
var KindAny = &Kind{name: "any"}

// NewKind declares a kind with the given parent. A nil parent attaches the
// kind directly under KindAny.
func NewKind(name string, parent *Kind) *Kind {
	if parent == nil {
		parent = KindAny
	}
	return &Kind{name: name, parent: parent}
}

// Name returns the kind's name.
func (k *Kind) Name() string {
	if k == nil {
		return ""
	}
	return k.name
}

// Parent returns the parent kind, or nil for KindAny.
func (k *Kind) Parent() *Kind {
	if k == nil {
		return nil
	}
	return k.parent
}

// Is reports whether k equals target or descends from it.
func (k *Kind) Is(target *Kind) bool {
	if target == nil {
		return false
	}
	for cur := k; cur != nil; cur = cur.parent {
		if cur == target {
			return true
		}
	}
	return false
}

// Chain returns the kind names from k up to and including KindAny.
func (k *Kind) Chain() []string {
	var names []string
	for cur := k; cur != nil; cur = cur.parent {
		names = append(names, cur.name)
	}
	return names
}

// String implements fmt.Stringer.
func (k *Kind) String() string {
	return k.Name()
}
