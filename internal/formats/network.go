// Package formats provides the payload conversion network: named
// formats are nodes, adapters are directed edges, and converting
// between two formats chains the adapters along the shortest path.
package formats

import (
	"fmt"
	"sort"
	"sync"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Ensure Network implements the interface.
var _ driven.ConversionNetwork = (*Network)(nil)

// AdapterFunc converts payload bytes from one format to another.
type AdapterFunc func(data []byte) ([]byte, error)

// Network maps format names to the adapters connecting them.
// It allows payloads stored in one format to serve consumers that
// expect another, without every pair needing a direct adapter.
type Network struct {
	mu       sync.RWMutex
	formats  map[string]bool
	adapters map[string]map[string]AdapterFunc
}

// NewNetwork creates an empty conversion network.
func NewNetwork() *Network {
	return &Network{
		formats:  make(map[string]bool),
		adapters: make(map[string]map[string]AdapterFunc),
	}
}

// RegisterFormat adds a format node. Registering an existing format is
// a no-op.
func (n *Network) RegisterFormat(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty format name", domain.ErrInvalidInput)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.formats[name] = true
	return nil
}

// RegisterAdapter adds a directed conversion edge. Both formats must be
// registered first. Registering the same edge twice replaces the
// adapter.
func (n *Network) RegisterAdapter(from, to string, fn AdapterFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: nil adapter", domain.ErrInvalidInput)
	}
	if from == to {
		return fmt.Errorf("%w: adapter from %q to itself", domain.ErrInvalidInput, from)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.formats[from] {
		return fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, from)
	}
	if !n.formats[to] {
		return fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, to)
	}

	edges, ok := n.adapters[from]
	if !ok {
		edges = make(map[string]AdapterFunc)
		n.adapters[from] = edges
	}
	edges[to] = fn
	return nil
}

// HasFormat reports whether the format is registered.
func (n *Network) HasFormat(name string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.formats[name]
}

// Formats returns all registered format names in sorted order.
func (n *Network) Formats() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	names := make([]string, 0, len(n.formats))
	for name := range n.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the format names along the shortest conversion route,
// including both endpoints. Identical endpoints yield a single-element
// path. Returns domain.ErrNoConversionPath when the formats are not
// connected.
func (n *Network) Path(from, to string) ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.formats[from] {
		return nil, fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, from)
	}
	if !n.formats[to] {
		return nil, fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, to)
	}
	if from == to {
		return []string{from}, nil
	}

	// Breadth-first search. Neighbours visit in sorted order so routes
	// of equal length resolve the same way every run.
	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range n.neighbours(current) {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = current
			if next == to {
				return reconstructPath(parent, to), nil
			}
			queue = append(queue, next)
		}
	}

	return nil, fmt.Errorf("%w: %s -> %s", domain.ErrNoConversionPath, from, to)
}

// neighbours must be called with the lock held.
func (n *Network) neighbours(from string) []string {
	edges := n.adapters[from]
	names := make([]string, 0, len(edges))
	for name := range edges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// reconstructPath walks the parent links back from the target. The
// search root has parent "", which RegisterFormat reserves.
func reconstructPath(parent map[string]string, to string) []string {
	var reversed []string
	for at := to; at != ""; at = parent[at] {
		reversed = append(reversed, at)
	}
	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}

// Convert passes data through the adapter chain along the shortest
// path between the formats. Identical formats return the data
// unchanged.
func (n *Network) Convert(data []byte, from, to string) ([]byte, error) {
	path, err := n.Path(from, to)
	if err != nil {
		return nil, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	for i := 0; i+1 < len(path); i++ {
		fn := n.adapters[path[i]][path[i+1]]
		data, err = fn(data)
		if err != nil {
			return nil, fmt.Errorf("converting %s to %s: %w", path[i], path[i+1], err)
		}
	}
	return data, nil
}
