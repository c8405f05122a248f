package testutil

// FixedIDGenerator returns the same execution id every time.
//
// The harness uses it so log lines of a scenario are identical from run to
// run. Unlike engine.FixedGenerator, which returns ids in sequence, this
// generator never changes.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a fixed id generator.
//
// If id is empty, Generate() returns "test-exec-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-exec-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements engine.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
