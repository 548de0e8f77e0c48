package node

import "sync"

// Cache is the mutex-guarded map the traversal engine uses to claim
// and finalize Nodes, keyed by internal/cachekey.Derive's output.
// Membership under a key implies the node either is being processed or
// has been processed exactly once.
type Cache struct {
	mu    sync.Mutex
	nodes map[string]*Node
	order []string
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{nodes: make(map[string]*Node)}
}

// Claim atomically checks whether key is already present and, if not,
// inserts candidate as a placeholder under that key. It returns the
// node now stored under key and whether candidate is the one that won
// the claim (isNew). Callers that lose the claim (isNew == false) must
// not process candidate further; another worker already owns it.
func (c *Cache) Claim(key string, candidate *Node) (n *Node, isNew bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.nodes[key]; ok {
		return existing, false
	}

	c.nodes[key] = candidate
	c.order = append(c.order, key)
	return candidate, true
}

// Finalize overwrites the entry at key with the fully processed node.
// Callers must hold a winning claim on key before calling Finalize.
func (c *Cache) Finalize(key string, n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[key] = n
}

// Get returns the node stored under key, if any.
func (c *Cache) Get(key string) (*Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[key]
	return n, ok
}

// Len returns the number of distinct cache keys claimed so far.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// Nodes returns every node in the cache in claim order. The order in
// which unrelated nodes are claimed across workers can differ from run
// to run, and so can this order.
func (c *Cache) Nodes() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Node, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.nodes[key])
	}
	return out
}

// Roots returns every node with Root == true, in claim order.
func (c *Cache) Roots() []*Node {
	var out []*Node
	for _, n := range c.Nodes() {
		if n.Root {
			out = append(out, n)
		}
	}
	return out
}
