package plan

import (
	"fmt"
	"strings"

	"kiln/internal/diag"
	"kiln/internal/gate"
)

// Step is one execution unit of a compiled plan, currently 1:1 with items:
// the item to cook plus the gate holding its prerequisite signals.
type Step struct {
	Item ItemID
	Gate *gate.Gate
}

// Plan is the sealed result of MakePlan. It owns the dense item, gate, and
// adjacency storage that steps index into.
type Plan struct {
	items      []Item
	steps      []Step
	dependents [][]ItemID
	gates      []*gate.Gate
	registry   [kindCount]Pipeline
}

// Steps returns the deterministic execution order.
func (p *Plan) Steps() []Step {
	return p.steps
}

// Len reports the number of planned items.
func (p *Plan) Len() int {
	return len(p.items)
}

// Item resolves an item by id.
func (p *Plan) Item(id ItemID) Item {
	return p.items[id]
}

// Gate resolves the readiness gate for an item.
func (p *Plan) Gate(id ItemID) *gate.Gate {
	return p.gates[id]
}

// Dependents lists the consumers waiting on an item.
func (p *Plan) Dependents(id ItemID) []ItemID {
	return p.dependents[id]
}

// PipelineFor resolves the registered pipeline for an item's kind. The
// executor dispatches through this; dependency tracking itself is
// kind-agnostic.
func (p *Plan) PipelineFor(id ItemID) (Pipeline, bool) {
	pl := p.registry[p.items[id].Kind]
	return pl, pl != nil
}

// CycleError reports a dependency cycle. The plan is unusable; the involved
// items are listed for debugging.
type CycleError struct {
	Items []Item
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle among %d items: %s", len(e.Items), itemNames(e.Items))
}

func (e *CycleError) Unwrap() error { return diag.ErrBlocked }

// Diagnostic renders the cycle as a blocking job diagnostic.
func (e *CycleError) Diagnostic() diag.Diagnostic {
	return diag.Error(diag.CodeCycle, "dependency cycle among %d items: %s", len(e.Items), itemNames(e.Items))
}

// MissingPipelineError reports kinds used by declared items without a
// registered pipeline.
type MissingPipelineError struct {
	Kinds []Kind
	Items []string
}

func (e *MissingPipelineError) Error() string {
	return fmt.Sprintf("no pipeline registered for %s (needed by %s)", kindList(e.Kinds), strings.Join(e.Items, ", "))
}

func (e *MissingPipelineError) Unwrap() error { return diag.ErrBlocked }

// Diagnostic renders the missing registrations as a blocking job diagnostic.
func (e *MissingPipelineError) Diagnostic() diag.Diagnostic {
	return diag.Error(diag.CodeMissingPipeline, "no pipeline registered for %s (needed by %s)", kindList(e.Kinds), strings.Join(e.Items, ", "))
}

func itemNames(items []Item) string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = fmt.Sprintf("%s(#%d)", item.DebugName, item.ID)
	}
	return strings.Join(names, ", ")
}

func kindList(kinds []Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}
