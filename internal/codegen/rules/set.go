package rules

// Set is an immutable, ordered collection of names. Order is the order the
// names were given in, which is also the order some outputs are emitted in.
type Set struct {
	order []string
	index map[string]struct{}
}

func NewSet(names ...string) Set {
	s := Set{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if _, dup := s.index[n]; dup {
			continue
		}
		s.index[n] = struct{}{}
		s.order = append(s.order, n)
	}
	return s
}

func (s Set) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (s Set) Len() int { return len(s.order) }

// Values returns a copy of the names in insertion order.
func (s Set) Values() []string {
	return append([]string(nil), s.order...)
}
