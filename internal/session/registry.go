package session

import (
	"sync"

	"github.com/nbkit/nbkit/pkg/types"
)

// Registry is the process-wide record of kernels started by this client, so
// other panels can list and kill them. It is explicitly owned by the app
// wiring; register and unregister are its only mutation entry points.
type Registry struct {
	mu      sync.RWMutex
	kernels map[string]types.Kernel
}

// NewRegistry creates an empty kernel registry.
func NewRegistry() *Registry {
	return &Registry{kernels: make(map[string]types.Kernel)}
}

// Register records a kernel under its id. Re-registering replaces the entry.
func (r *Registry) Register(kernel types.Kernel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kernels[kernel.ID] = kernel
}

// Unregister forgets a kernel. Unknown ids are no-ops.
func (r *Registry) Unregister(kernelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.kernels, kernelID)
}

// List returns all registered kernels.
func (r *Registry) List() []types.Kernel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kernels := make([]types.Kernel, 0, len(r.kernels))
	for _, kernel := range r.kernels {
		kernels = append(kernels, kernel)
	}
	return kernels
}
