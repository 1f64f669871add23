package application

import (
	"sync"

	"github.com/someipd/someipd/internal/control"
	"github.com/someipd/someipd/internal/router"
	"github.com/someipd/someipd/internal/sdtypes"
)

// LocalServerHandle represents exclusive ownership of one provided
// instance within the daemon (spec.md §3 "LocalServer"). At most one
// exists per (deployment, instance) at any time.
type LocalServerHandle struct {
	Instance sdtypes.ServiceInstanceId
	send     *router.SendRouter
	owner    *Application
}

// SendMethodRequest implements router.LocalServer.
func (h *LocalServerHandle) SendMethodRequest(payload []byte) {
	h.send.HandleMethodRequest(uint16(h.Instance.Instance), payload)
}

// SendMethodRequestNoReturn implements router.LocalServer.
func (h *LocalServerHandle) SendMethodRequestNoReturn(payload []byte) {
	h.send.HandleMethodRequestNoReturn(uint16(h.Instance.Instance), payload)
}

// SendPdu implements router.LocalServer.
func (h *LocalServerHandle) SendPdu(payload []byte) {
	h.send.OnPduEvent(uint16(h.Instance.Instance), payload)
}

// LocalServerManager enforces the process-wide "at most one LocalServer
// per (deployment, instance)" invariant (spec.md §3). Grounded on the
// teacher's bfd.Manager mutex-guarded registry.
type LocalServerManager struct {
	mu      sync.Mutex
	servers map[sdtypes.ServiceInstanceId]*LocalServerHandle
}

// NewLocalServerManager creates an empty registry.
func NewLocalServerManager() *LocalServerManager {
	return &LocalServerManager{servers: make(map[sdtypes.ServiceInstanceId]*LocalServerHandle)}
}

// Acquire takes exclusive ownership of instance for owner, or returns
// ReturnCodeLocalServerNotAvailable if another application already owns
// it.
func (m *LocalServerManager) Acquire(instance sdtypes.ServiceInstanceId, owner *Application, send *router.SendRouter) (*LocalServerHandle, control.ReturnCode) {
	key := instance.Dummy()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.servers[key]; exists {
		return nil, control.ReturnCodeLocalServerNotAvailable
	}

	h := &LocalServerHandle{Instance: instance, send: send, owner: owner}
	m.servers[key] = h
	return h, control.ReturnCodeOk
}

// Release relinquishes ownership of instance, if owner currently holds
// it.
func (m *LocalServerManager) Release(instance sdtypes.ServiceInstanceId, owner *Application) {
	key := instance.Dummy()

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.servers[key]; ok && h.owner == owner {
		delete(m.servers, key)
	}
}

// Find looks up the LocalServer owning instanceID, used by the Receive
// Router (spec.md §4.3).
func (m *LocalServerManager) Find(instanceID uint16) (router.LocalServer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, h := range m.servers {
		if uint16(key.Instance) == instanceID {
			return h, true
		}
	}
	return nil, false
}

// ReleaseAll relinquishes every instance owned by owner, called on
// Application disconnect (spec.md §4.6).
func (m *LocalServerManager) ReleaseAll(owner *Application) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, h := range m.servers {
		if h.owner == owner {
			delete(m.servers, key)
		}
	}
}
