package pull

import "sync"

// NodeQueue is the pool's shared work list. Workers pop from the end (LIFO)
// until it is empty; it is never refilled during a run.
type NodeQueue struct {
	mu    sync.Mutex
	nodes []string
}

func NewNodeQueue(nodes []string) *NodeQueue {
	q := &NodeQueue{nodes: make([]string, len(nodes))}
	copy(q.nodes, nodes)
	return q
}

// Pop removes and returns the last node. remaining is the queue length after
// the removal, observed under the same lock.
func (q *NodeQueue) Pop() (node string, remaining int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.nodes)
	if n == 0 {
		return "", 0, false
	}
	node = q.nodes[n-1]
	q.nodes[n-1] = ""
	q.nodes = q.nodes[:n-1]
	return node, n - 1, true
}

func (q *NodeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.nodes)
}
