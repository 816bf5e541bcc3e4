package gate

// Gate blocks a consumer step until all of its producer steps have
// completed, without polling.
//
// The zero slots in satisfied parallel the required producer ids. MarkReady
// flips one slot; the last flip closes the ready channel. Marking an unknown
// producer, or re-marking a satisfied one, is a silent no-op, so duplicate
// completion notifications can never double-fire the gate.
//
// Mutating methods must only be called from the goroutine driving the job.
type Gate struct {
	required  []uint32
	satisfied []bool
	remaining int
	fired     bool
	ready     chan struct{}
}

// New builds a gate over a deduplicated list of producer ids. An empty list
// yields a gate that is already open: waiting on zero events completes
// without suspending.
func New(producers []uint32) *Gate {
	g := &Gate{
		ready: make(chan struct{}),
	}
	if len(producers) > 0 {
		g.required = make([]uint32, len(producers))
		copy(g.required, producers)
		g.satisfied = make([]bool, len(producers))
		g.remaining = len(producers)
	}
	if g.remaining == 0 {
		g.fire()
	}
	return g
}

// IsReady reports whether every required producer has been marked.
func (g *Gate) IsReady() bool {
	return g.remaining == 0
}

// MarkReady records the completion of one producer. It fires the ready
// channel exactly when the last outstanding producer is marked.
func (g *Gate) MarkReady(producer uint32) {
	for i, id := range g.required {
		if id != producer {
			continue
		}
		if g.satisfied[i] {
			return
		}
		g.satisfied[i] = true
		g.remaining--
		if g.remaining == 0 {
			g.fire()
		}
		return
	}
}

// Ready returns a channel closed once the gate is open. Safe to receive on
// from any goroutine.
func (g *Gate) Ready() <-chan struct{} {
	return g.ready
}

// Required returns the producer ids this gate waits on.
func (g *Gate) Required() []uint32 {
	out := make([]uint32, len(g.required))
	copy(out, g.required)
	return out
}

func (g *Gate) fire() {
	if g.fired {
		return
	}
	g.fired = true
	close(g.ready)
}
