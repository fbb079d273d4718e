package app

import (
	"context"
	"strings"
	"sync"

	"tenant-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// SchemaFactory materializes the six tenant-namespaced stores (tables, indexes, ...).
type SchemaFactory interface {
	Materialize(ctx context.Context, tenantID string) (Stores, error)
}

// TenantRegistry memoizes store bundles per tenant for the process lifetime.
type TenantRegistry struct {
	factory SchemaFactory
	sf      singleflight.Group

	mu      sync.RWMutex
	tenants map[string]Stores
}

func NewTenantRegistry(factory SchemaFactory) *TenantRegistry {
	return &TenantRegistry{
		factory: factory,
		tenants: make(map[string]Stores),
	}
}

// Resolve returns the stores of a tenant, materializing them on first use.
// A failed materialization is not cached; the next call tries again.
func (r *TenantRegistry) Resolve(ctx context.Context, tenantID string) (Stores, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Stores{}, domain.Invalid("Invalid tenant: It must not be empty.")
	}

	r.mu.RLock()
	if stores, ok := r.tenants[tenantID]; ok {
		r.mu.RUnlock()
		return stores, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(tenantID, func() (interface{}, error) {
		r.mu.RLock()
		if stores, ok := r.tenants[tenantID]; ok {
			r.mu.RUnlock()
			return stores, nil
		}
		r.mu.RUnlock()

		stores, err := r.factory.Materialize(ctx, tenantID)
		if err != nil {
			return Stores{}, domain.Internal("materialize tenant schema", err)
		}

		r.mu.Lock()
		r.tenants[tenantID] = stores
		r.mu.Unlock()
		return stores, nil
	})
	if err != nil {
		return Stores{}, err
	}
	return result.(Stores), nil
}

// Len reports how many tenants have been materialized.
func (r *TenantRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tenants)
}
