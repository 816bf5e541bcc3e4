package gate_test

import (
	"testing"

	"kiln/internal/gate"
)

func TestEmptyGateBornReady(t *testing.T) {
	g := gate.New(nil)
	if !g.IsReady() {
		t.Fatal("gate with no producers should be ready immediately")
	}
	select {
	case <-g.Ready():
	default:
		t.Fatal("ready channel should be closed for an empty gate")
	}
}

func TestGateFiresOnLastProducer(t *testing.T) {
	g := gate.New([]uint32{1, 4, 7})
	if g.IsReady() {
		t.Fatal("gate should not start ready")
	}

	g.MarkReady(1)
	g.MarkReady(4)
	if g.IsReady() {
		t.Fatal("gate fired before all producers completed")
	}
	select {
	case <-g.Ready():
		t.Fatal("ready channel closed early")
	default:
	}

	g.MarkReady(7)
	if !g.IsReady() {
		t.Fatal("gate should be ready after final producer")
	}
	select {
	case <-g.Ready():
	default:
		t.Fatal("ready channel should be closed")
	}
}

func TestMarkReadyIdempotent(t *testing.T) {
	g := gate.New([]uint32{2, 3})

	g.MarkReady(2)
	g.MarkReady(2)
	g.MarkReady(2)
	if g.IsReady() {
		t.Fatal("duplicate marks for one producer must not satisfy the gate")
	}

	g.MarkReady(3)
	if !g.IsReady() {
		t.Fatal("gate should be ready")
	}
	// Marking after the gate fired must not panic (the channel closes once).
	g.MarkReady(3)
	g.MarkReady(2)
}

func TestMarkReadyUnknownProducerIsNoOp(t *testing.T) {
	g := gate.New([]uint32{5})
	g.MarkReady(99)
	if g.IsReady() {
		t.Fatal("unknown producer must not open the gate")
	}
	g.MarkReady(5)
	if !g.IsReady() {
		t.Fatal("gate should open after its real producer")
	}
}

func TestRequiredReturnsCopy(t *testing.T) {
	g := gate.New([]uint32{8, 9})
	req := g.Required()
	req[0] = 1234
	if got := g.Required()[0]; got != 8 {
		t.Fatalf("mutating the returned slice leaked into the gate: got %d", got)
	}
}
