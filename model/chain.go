package model

// ModelChain is the ordered list of endpoints tried for one role.
// The first entry is the primary model; the rest are backups in order.
type ModelChain struct {
	Role      Role
	Endpoints []string
}

// NewChain creates a chain for a role from endpoint names, dropping blanks
// and duplicates while keeping the first occurrence.
func NewChain(role Role, endpoints ...string) ModelChain {
	seen := make(map[string]bool, len(endpoints))
	out := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return ModelChain{Role: role, Endpoints: out}
}

// Len returns the number of endpoints in the chain.
func (c ModelChain) Len() int {
	return len(c.Endpoints)
}

// At returns the endpoint at position i, or false when i is out of range.
func (c ModelChain) At(i int) (string, bool) {
	if i < 0 || i >= len(c.Endpoints) {
		return "", false
	}
	return c.Endpoints[i], true
}

// Primary returns the first endpoint of the chain.
func (c ModelChain) Primary() string {
	if len(c.Endpoints) == 0 {
		return ""
	}
	return c.Endpoints[0]
}
