package forecast

import "fmt"

// Descriptor describes a registered algorithm for listing purposes.
type Descriptor struct {
	Key         string
	DisplayName string
}

// Registry is the process-wide catalogue of forecasting algorithms, keyed by
// their stable identifiers. It is populated once at startup and never mutated
// afterward, so concurrent reads need no synchronization.
type Registry struct {
	byKey      map[string]Algorithm
	order      []string
	defaultKey string
}

// NewRegistry builds a registry from the given algorithms with defaultKey as
// the fallback selection. Returns an error if no algorithms are given, a key
// is duplicated, or defaultKey does not match a registered algorithm.
func NewRegistry(defaultKey string, algorithms ...Algorithm) (*Registry, error) {
	if len(algorithms) == 0 {
		return nil, fmt.Errorf("registry: no algorithms registered")
	}

	r := &Registry{
		byKey:      make(map[string]Algorithm, len(algorithms)),
		order:      make([]string, 0, len(algorithms)),
		defaultKey: defaultKey,
	}

	for _, alg := range algorithms {
		key := alg.Key()
		if key == "" {
			return nil, fmt.Errorf("registry: algorithm %q has an empty key", alg.DisplayName())
		}
		if _, exists := r.byKey[key]; exists {
			return nil, fmt.Errorf("registry: duplicate algorithm key %q", key)
		}
		r.byKey[key] = alg
		r.order = append(r.order, key)
	}

	if _, ok := r.byKey[defaultKey]; !ok {
		return nil, fmt.Errorf("registry: default key %q is not registered", defaultKey)
	}

	return r, nil
}

// NewStandardRegistry builds the registry with the three production
// algorithms. An empty defaultKey selects the moving average, the
// conservative baseline.
func NewStandardRegistry(defaultKey string) (*Registry, error) {
	if defaultKey == "" {
		defaultKey = MovingAverageAlgorithm{}.Key()
	}
	return NewRegistry(defaultKey,
		TrendAlgorithm{},
		MovingAverageAlgorithm{},
		LinearRegressionAlgorithm{},
	)
}

// List returns the registered algorithms in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.order))
	for i, key := range r.order {
		out[i] = Descriptor{Key: key, DisplayName: r.byKey[key].DisplayName()}
	}
	return out
}

// Resolve returns the algorithm for key. An empty or unknown key silently
// falls back to the default rather than failing the request; callers detect
// the fallback through Result.AlgorithmKey.
func (r *Registry) Resolve(key string) Algorithm {
	if alg, ok := r.byKey[key]; ok {
		return alg
	}
	return r.byKey[r.defaultKey]
}

// DefaultKey returns the configured fallback key.
func (r *Registry) DefaultKey() string {
	return r.defaultKey
}
