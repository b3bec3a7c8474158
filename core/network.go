package core

import (
	"sync"
	"time"

	"github.com/signalsfoundry/cgs-scheduler/model"
	"github.com/signalsfoundry/cgs-scheduler/timectrl"
)

// Network is the in-process message bus connecting Nodes: it schedules
// bundle and task-table deliveries through the shared EventScheduler so
// that a message sent at wall-time t over a contact with one-way light
// time owlt is delivered at exactly t+owlt+size/rate (spec §5 causal
// delivery), and messages from the same sender over the same contact
// are delivered in FIFO order because they are scheduled in send order
// onto a single time-ordered queue.
type Network struct {
	mu    sync.RWMutex
	nodes map[model.NodeID]*Node
	clock timectrl.EventScheduler
}

// NewNetwork returns a Network driven by clock.
func NewNetwork(clock timectrl.EventScheduler) *Network {
	return &Network{nodes: make(map[model.NodeID]*Node), clock: clock}
}

// Register makes n reachable by its UID.
func (net *Network) Register(n *Node) {
	net.mu.Lock()
	defer net.mu.Unlock()
	net.nodes[n.UID] = n
}

// SendBundle schedules delivery of b to "to" at arrival.
func (net *Network) SendBundle(to model.NodeID, b *model.Bundle, arrival time.Time) {
	net.clock.Schedule(arrival, func() {
		net.mu.RLock()
		node, ok := net.nodes[to]
		net.mu.RUnlock()
		if ok {
			node.ReceiveBundle(net.clock.Now(), b)
		}
	})
}

// SendTaskTable schedules delivery of a task-table snapshot/delta to
// "to" at arrival.
func (net *Network) SendTaskTable(to model.NodeID, snapshot map[model.TaskID]*model.Task, arrival time.Time) {
	net.clock.Schedule(arrival, func() {
		net.mu.RLock()
		node, ok := net.nodes[to]
		net.mu.RUnlock()
		if ok {
			node.ReceiveTaskTable(snapshot)
		}
	})
}
