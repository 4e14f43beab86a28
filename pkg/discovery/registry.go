package discovery

import (
	"sort"
	"sync"
	"time"
)

// Registry holds every node known on the segment. Only the discovery
// engine writes to it; everything else reads snapshots.
type Registry struct {
	mu    sync.RWMutex
	nodes map[uint8]Node
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[uint8]Node)}
}

// Upsert inserts or refreshes a node. A refresh keeps the resolved GUID
// and MDF when the new entry lacks them, so a heartbeat after a full
// scan does not erase resolution results.
func (r *Registry) Upsert(n Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.nodes[n.ID]; ok {
		if n.GUID.IsZero() {
			n.GUID = cur.GUID
		}
		if n.MDF == "" {
			n.MDF = cur.MDF
		}
		n.Hardcoded = n.Hardcoded || cur.Hardcoded
	}
	if n.LastSeen.IsZero() {
		n.LastSeen = time.Now()
	}
	r.nodes[n.ID] = n
}

// Touch refreshes LastSeen for a known node. It reports whether the
// node was present.
func (r *Registry) Touch(id uint8) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok {
		return false
	}
	n.LastSeen = time.Now()
	r.nodes[id] = n
	return true
}

// Rename moves a node to a new nickname, after a set-nickname exchange.
func (r *Registry) Rename(oldID, newID uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[oldID]
	if !ok {
		return
	}
	delete(r.nodes, oldID)
	n.ID = newID
	n.LastSeen = time.Now()
	r.nodes[newID] = n
}

// Get returns a node by nickname.
func (r *Registry) Get(id uint8) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	return n, ok
}

// Snapshot returns all nodes ordered by nickname. The slice is a copy;
// the registry can keep changing underneath it.
func (r *Registry) Snapshot() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of known nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = make(map[uint8]Node)
}
