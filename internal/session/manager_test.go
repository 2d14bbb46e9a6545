package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbkit/nbkit/internal/api"
	"github.com/nbkit/nbkit/internal/event"
	"github.com/nbkit/nbkit/pkg/types"
)

func newTestManager(t *testing.T, handler http.HandlerFunc) (*Manager, *Registry) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	registry := NewRegistry()
	return NewManager(api.NewClient(server.URL, ""), registry, bus, "python3"), registry
}

func sessionHandler(t *testing.T, gotKernel *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sessions", r.URL.Path)
		var req types.SessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*gotKernel = req.Kernel.Name

		json.NewEncoder(w).Encode(types.Session{
			ID:     "sess-1",
			Kernel: types.Kernel{ID: "kern-1", Name: req.Kernel.Name},
		})
	}
}

func TestStartTransitionsToActive(t *testing.T) {
	var gotKernel string
	m, registry := newTestManager(t, sessionHandler(t, &gotKernel))

	assert.Equal(t, StateNoSession, m.State())
	_, ok := m.Current()
	assert.False(t, ok)

	sess, err := m.Start(context.Background(), "nb.ipynb", "nb", "notebook", "ir")
	require.NoError(t, err)
	assert.Equal(t, "ir", gotKernel)
	assert.Equal(t, StateActive, m.State())

	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, sess.ID, current.ID)

	kernels := registry.List()
	require.Len(t, kernels, 1)
	assert.Equal(t, "kern-1", kernels[0].ID)
}

func TestStartSubstitutesDefaultKernelspec(t *testing.T) {
	var gotKernel string
	m, _ := newTestManager(t, sessionHandler(t, &gotKernel))

	_, err := m.Start(context.Background(), "nb.ipynb", "nb", "notebook", "default")
	require.NoError(t, err)
	assert.Equal(t, "python3", gotKernel)
}

func TestStartFailureKeepsNoSession(t *testing.T) {
	m, registry := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such kernelspec", http.StatusInternalServerError)
	})

	_, err := m.Start(context.Background(), "nb.ipynb", "nb", "notebook", "bogus")
	require.Error(t, err)
	assert.Equal(t, StateNoSession, m.State())
	assert.Empty(t, registry.List())
}

func TestStartFailureKeepsPriorSession(t *testing.T) {
	fail := false
	var gotKernel string
	ok := sessionHandler(t, &gotKernel)
	m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "boom", http.StatusServiceUnavailable)
			return
		}
		ok(w, r)
	})

	first, err := m.Start(context.Background(), "nb.ipynb", "nb", "notebook", "python3")
	require.NoError(t, err)

	fail = true
	_, err = m.Start(context.Background(), "nb.ipynb", "nb", "notebook", "julia")
	require.Error(t, err)

	assert.Equal(t, StateActive, m.State())
	current, found := m.Current()
	require.True(t, found)
	assert.Equal(t, first.ID, current.ID)
}

func TestKernelSwitchReplacesSession(t *testing.T) {
	count := 0
	m, registry := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		count++
		var req types.SessionRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(types.Session{
			ID:     "sess-" + req.Kernel.Name,
			Kernel: types.Kernel{ID: "kern-" + req.Kernel.Name, Name: req.Kernel.Name},
		})
	})

	_, err := m.Start(context.Background(), "nb.ipynb", "nb", "notebook", "python3")
	require.NoError(t, err)
	_, err = m.Start(context.Background(), "nb.ipynb", "nb", "notebook", "julia")
	require.NoError(t, err)

	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "sess-julia", current.ID)
	assert.Equal(t, 2, count)

	// The superseded kernel is gone from the registry.
	kernels := registry.List()
	require.Len(t, kernels, 1)
	assert.Equal(t, "kern-julia", kernels[0].ID)
}

func TestStopKernel(t *testing.T) {
	var deleted string
	m, registry := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(types.Session{
			ID:     "sess-1",
			Kernel: types.Kernel{ID: "kern-1", Name: "python3"},
		})
	})

	_, err := m.Start(context.Background(), "nb.ipynb", "nb", "notebook", "python3")
	require.NoError(t, err)

	require.NoError(t, m.StopKernel(context.Background()))
	assert.Equal(t, "/api/kernels/kern-1", deleted)
	assert.Equal(t, StateNoSession, m.State())
	assert.Empty(t, registry.List())

	assert.ErrorIs(t, m.StopKernel(context.Background()), ErrNoSession)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	registry.Register(types.Kernel{ID: "k1", Name: "python3"})
	registry.Register(types.Kernel{ID: "k2", Name: "julia"})
	assert.Len(t, registry.List(), 2)

	registry.Unregister("k1")
	kernels := registry.List()
	require.Len(t, kernels, 1)
	assert.Equal(t, "k2", kernels[0].ID)

	// Unknown ids are no-ops.
	registry.Unregister("nope")
	assert.Len(t, registry.List(), 1)
}
