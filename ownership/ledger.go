package ownership

import (
	"fmt"
	"sort"

	"github.com/rubiojr/bindgen/binderr"
)

// Entry is one recorded action on a named value.
type Entry struct {
	Value      string
	RefCounted bool
	Action     Action
}

// Ledger records the ownership actions a generated wrapper performs. It
// refuses to record a Delete of a reference counted value.
type Ledger struct {
	entries []Entry
}

// Record appends an action for value.
func (l *Ledger) Record(value string, refCounted bool, a Action) error {
	if refCounted && a.Kind == Delete {
		return binderr.Generationf("refusing to delete reference counted value %s", value)
	}
	l.entries = append(l.entries, Entry{Value: value, RefCounted: refCounted, Action: a})
	return nil
}

// Count returns how many actions of kind were recorded.
func (l *Ledger) Count(kind ActionKind) int {
	n := 0
	for _, e := range l.entries {
		if e.Action.Kind == kind {
			n++
		}
	}
	return n
}

// RefSim replays actions against one reference counted object. It starts
// with the references native code holds and checks the glue never drops
// more references than it took.
type RefSim struct {
	count     int
	held      int
	destroyed bool
}

// NewRefSim starts a simulation with count outstanding references, none
// of them held by a wrapper yet.
func NewRefSim(count int) *RefSim {
	return &RefSim{count: count}
}

// Apply runs the glue side of actions.
func (s *RefSim) Apply(actions ...Action) error {
	for _, a := range actions {
		if s.destroyed {
			return fmt.Errorf("%s on a destroyed object", a)
		}
		switch a.Kind {
		case Incref:
			s.count++
		case Adopt:
			// The wrapper takes over one outstanding reference.
			s.held++
		case Decref:
			if s.held == 0 {
				return fmt.Errorf("decref without a held reference")
			}
			s.held--
			if err := s.drop(); err != nil {
				return err
			}
		case Delete:
			return binderr.Generationf("delete of a reference counted object")
		}
	}
	return nil
}

// NativeUnref drops a reference held by native code.
func (s *RefSim) NativeUnref() error {
	return s.drop()
}

func (s *RefSim) drop() error {
	if s.count == 0 {
		return fmt.Errorf("reference count underflow")
	}
	s.count--
	if s.count == 0 {
		s.destroyed = true
	}
	return nil
}

// Count returns the current reference count.
func (s *RefSim) Count() int { return s.count }

// Held returns how many references wrappers hold.
func (s *RefSim) Held() int { return s.held }

// Destroyed reports whether the count reached zero.
func (s *RefSim) Destroyed() bool { return s.destroyed }

// Graph models wrapper lifetimes under custodian/ward edges. A wrapper
// stays alive while the host references it or while it is reachable, via
// ward edges, from a wrapper the host references. Cycles are legal.
type Graph struct {
	nodes map[string]*node
}

type node struct {
	hostRefs  int
	wards     []string
	finalized bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// Add creates a wrapper with one host reference.
func (g *Graph) Add(id string) {
	g.nodes[id] = &node{hostRefs: 1}
}

// Ref adds a host reference.
func (g *Graph) Ref(id string) error {
	n, err := g.live(id)
	if err != nil {
		return err
	}
	n.hostRefs++
	return nil
}

// Unref drops a host reference.
func (g *Graph) Unref(id string) error {
	n, err := g.live(id)
	if err != nil {
		return err
	}
	if n.hostRefs == 0 {
		return fmt.Errorf("wrapper %s has no host references", id)
	}
	n.hostRefs--
	return nil
}

// AddWard makes custodian keep ward alive.
func (g *Graph) AddWard(custodian, ward string) error {
	c, err := g.live(custodian)
	if err != nil {
		return err
	}
	if _, err := g.live(ward); err != nil {
		return err
	}
	c.wards = append(c.wards, ward)
	return nil
}

func (g *Graph) live(id string) (*node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("unknown wrapper %s", id)
	}
	if n.finalized {
		return nil, fmt.Errorf("wrapper %s is finalized", id)
	}
	return n, nil
}

// Collect finalizes every wrapper not reachable from a host-referenced
// wrapper and returns their ids, sorted.
func (g *Graph) Collect() []string {
	reached := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		if reached[id] {
			return
		}
		reached[id] = true
		for _, w := range g.nodes[id].wards {
			visit(w)
		}
	}
	for id, n := range g.nodes {
		if !n.finalized && n.hostRefs > 0 {
			visit(id)
		}
	}
	var out []string
	for id, n := range g.nodes {
		if !n.finalized && !reached[id] {
			n.finalized = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Alive reports whether id exists and was not finalized.
func (g *Graph) Alive(id string) bool {
	n, ok := g.nodes[id]
	return ok && !n.finalized
}
