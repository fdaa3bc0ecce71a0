package flow

// Builder provides a fluent API for declaring flows:
//
//	def, err := flow.New("onboarding").
//	    Step("welcome", welcomePayload,
//	        flow.Action{ID: "start", Label: "Start", Target: flow.Goto("pick")},
//	        flow.Action{ID: "skip", Label: "Skip", Target: flow.End(flow.OutcomeCompleted)},
//	    ).
//	    Step("pick", pickPayload, pickActions...).
//	    Build()
//
// The first declared step is the entry unless EntryAt overrides it.
type Builder struct {
	name  string
	entry string
	steps []Step
}

// New starts a flow declaration with the given name.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Step appends a step. The first step becomes the entry.
func (b *Builder) Step(id string, payload any, actions ...Action) *Builder {
	if b.entry == "" {
		b.entry = id
	}
	b.steps = append(b.steps, Step{ID: id, Payload: payload, Actions: actions})
	return b
}

// EntryAt overrides the entry step.
func (b *Builder) EntryAt(id string) *Builder {
	b.entry = id
	return b
}

// Build validates the declared graph and returns the Definition.
func (b *Builder) Build() (*Definition, error) {
	return NewDefinition(b.name, b.entry, b.steps...)
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
