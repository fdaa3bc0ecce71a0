package flow

// Definition is a named, immutable graph of steps rooted at an entry step.
// Construction validates the graph; after that a Definition is read-only and
// safe for lock-free concurrent use by any number of sessions.
type Definition struct {
	name  string
	entry string
	steps map[string]*Step
}

// NewDefinition validates the step graph and returns the Definition.
// Every static action target must reference a declared step; a dangling edge
// fails with GraphError. Dynamic targets are checked at transition time.
func NewDefinition(name, entry string, steps ...Step) (*Definition, error) {
	if name == "" {
		return nil, &GraphError{Flow: name, Reason: "flow name must not be empty"}
	}
	if len(steps) == 0 {
		return nil, &GraphError{Flow: name, Reason: "flow must declare at least one step"}
	}

	byID := make(map[string]*Step, len(steps))
	for i := range steps {
		s := steps[i]
		if s.ID == "" {
			return nil, &GraphError{Flow: name, Reason: "step id must not be empty"}
		}
		if _, dup := byID[s.ID]; dup {
			return nil, &GraphError{Flow: name, Step: s.ID, Reason: "duplicate step id"}
		}
		byID[s.ID] = &s
	}

	if _, ok := byID[entry]; !ok {
		return nil, &GraphError{Flow: name, Step: entry, Reason: "entry step is not declared"}
	}

	for _, s := range byID {
		seen := make(map[string]struct{}, len(s.Actions))
		for _, a := range s.Actions {
			if a.ID == "" {
				return nil, &GraphError{Flow: name, Step: s.ID, Reason: "action id must not be empty"}
			}
			if a.ID == ActionBack || a.ID == ActionCancel {
				return nil, &GraphError{Flow: name, Step: s.ID, Action: a.ID, Reason: "action id is reserved"}
			}
			if _, dup := seen[a.ID]; dup {
				return nil, &GraphError{Flow: name, Step: s.ID, Action: a.ID, Reason: "duplicate action id"}
			}
			seen[a.ID] = struct{}{}

			t := a.Target
			switch t.kind {
			case targetNext:
				if _, ok := byID[t.step]; !ok {
					return nil, &GraphError{Flow: name, Step: s.ID, Action: a.ID,
						Reason: "action targets undeclared step " + t.step}
				}
			case targetDynamic:
				if t.resolve == nil {
					return nil, &GraphError{Flow: name, Step: s.ID, Action: a.ID, Reason: "nil resolver"}
				}
			}
		}
	}

	return &Definition{name: name, entry: entry, steps: byID}, nil
}

// MustDefinition is like NewDefinition but panics on error.
// Useful for flow declarations in package init or main.
func MustDefinition(name, entry string, steps ...Step) *Definition {
	def, err := NewDefinition(name, entry, steps...)
	if err != nil {
		panic(err)
	}
	return def
}

// Name returns the flow name.
func (d *Definition) Name() string { return d.name }

// Entry returns the entry step.
func (d *Definition) Entry() *Step { return d.steps[d.entry] }

// Step returns the declared step with the given id.
func (d *Definition) Step(id string) (*Step, bool) {
	s, ok := d.steps[id]
	return s, ok
}

// Len returns the number of declared steps.
func (d *Definition) Len() int { return len(d.steps) }
