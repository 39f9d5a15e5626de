package types

// Embedding is a dense vector with its declared dimensionality. Invariant:
// Dimensions == len(Values).
type Embedding struct {
	Values     []float32
	Model      string
	Dimensions int
}

// Valid reports whether the invariant Dimensions == len(Values) holds.
func (e Embedding) Valid() bool { return e.Dimensions == len(e.Values) }

// NewEmbedding constructs an Embedding with Dimensions derived from values,
// so callers cannot construct an invariant-violating instance by hand.
func NewEmbedding(model string, values []float32) Embedding {
	return Embedding{Values: values, Model: model, Dimensions: len(values)}
}
