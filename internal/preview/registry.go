package preview

// Generator renders one family of content into an Artifact.
type Generator interface {
	Name() string
	CanHandle(job *Job) bool
	Generate(job *Job) (*Artifact, error)
}

// Registry is an ordered list of generators; the first that accepts a job
// wins.
type Registry struct {
	generators []Generator
	fallback   Generator
}

// NewRegistry builds a registry trying generators in order. The last one is
// used when none accepts a job.
func NewRegistry(generators ...Generator) *Registry {
	r := &Registry{generators: generators}
	if len(generators) > 0 {
		r.fallback = generators[len(generators)-1]
	}
	return r
}

// DefaultRegistry returns the generators used by the application.
func DefaultRegistry() *Registry {
	return NewRegistry(
		directoryGenerator{},
		unsupportedGenerator{},
		imageGenerator{},
		archiveGenerator{},
		mediaGenerator{},
		subtitleGenerator{},
		markdownGenerator{},
		highlightGenerator{},
		textGenerator{},
		binaryGenerator{},
	)
}

// Select returns the generator for job.
func (r *Registry) Select(job *Job) Generator {
	for _, g := range r.generators {
		if g.CanHandle(job) {
			return g
		}
	}
	return r.fallback
}

// GeneratorFunc adapts plain functions to Generator.
type GeneratorFunc struct {
	Label string
	Match func(job *Job) bool
	Run   func(job *Job) (*Artifact, error)
}

func (g GeneratorFunc) Name() string { return g.Label }

func (g GeneratorFunc) CanHandle(job *Job) bool {
	return g.Match == nil || g.Match(job)
}

func (g GeneratorFunc) Generate(job *Job) (*Artifact, error) {
	return g.Run(job)
}
