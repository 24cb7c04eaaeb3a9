package acquirer

import (
	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"
)

// Registry resolves adapters by acquirer name. The set is fixed at startup;
// lookups never mutate it, so no locking is needed.
type Registry struct {
	adapters map[domain.Acquirer]ports.Adapter
	ordered  []ports.Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...ports.Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.Acquirer]ports.Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
		r.ordered = append(r.ordered, a)
	}
	return r
}

// Get returns the adapter for an acquirer.
func (r *Registry) Get(acquirer domain.Acquirer) (ports.Adapter, error) {
	a, ok := r.adapters[acquirer]
	if !ok {
		return nil, apperror.Validation("unknown acquirer: " + string(acquirer))
	}
	return a, nil
}

// All returns every registered adapter in registration order.
func (r *Registry) All() []ports.Adapter {
	return r.ordered
}

// Lister returns the date-range listing capability for an acquirer, or a
// capability-gap error when the adapter does not offer it.
func (r *Registry) Lister(acquirer domain.Acquirer) (ports.TransactionLister, error) {
	a, err := r.Get(acquirer)
	if err != nil {
		return nil, err
	}
	lister, ok := a.(ports.TransactionLister)
	if !ok {
		return nil, apperror.ErrCapabilityMissing(string(acquirer), "transaction listing")
	}
	return lister, nil
}
