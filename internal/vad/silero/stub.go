//go:build !silero

package silero

// Gate is unavailable without the silero build tag.
type Gate struct{}

// NewGate always fails with ErrUnsupported in default builds.
func NewGate(string, Options) (*Gate, error) {
	return nil, ErrUnsupported
}

func (g *Gate) Apply(samples []float32) ([]float32, error) {
	return nil, ErrUnsupported
}

func (g *Gate) Close() error { return nil }
