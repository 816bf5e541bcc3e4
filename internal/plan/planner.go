package plan

import (
	"container/heap"
	"fmt"

	"kiln/internal/diag"
	"kiln/internal/gate"
)

// ItemID is a dense index assigned in registration order. Ids are stable for
// the lifetime of a job and index directly into planner-owned storage.
type ItemID uint32

// Item is a declared asset awaiting cooking. Work is an opaque handle owned
// by the caller's importer; the planner never inspects it.
type Item struct {
	ID        ItemID
	Kind      Kind
	DebugName string
	Work      any
}

// Pipeline is the registry entry MakePlan validates against. Concrete
// pipelines self-report the kind they cook.
type Pipeline interface {
	PipelineKind() Kind
}

// Planner accumulates items, edges, and pipeline registrations for one job,
// then compiles them into a Plan. Not safe for concurrent use; a job builds
// its plan from a single goroutine.
type Planner struct {
	items     []Item
	producers [][]ItemID
	registry  [kindCount]Pipeline
	sealed    bool
}

func NewPlanner() *Planner {
	return &Planner{}
}

// AddTexture declares a texture item.
func (p *Planner) AddTexture(debugName string, work any) (ItemID, error) {
	return p.add(KindTexture, debugName, work)
}

// AddBuffer declares a raw buffer item.
func (p *Planner) AddBuffer(debugName string, work any) (ItemID, error) {
	return p.add(KindBuffer, debugName, work)
}

// AddAudio declares an audio clip item.
func (p *Planner) AddAudio(debugName string, work any) (ItemID, error) {
	return p.add(KindAudio, debugName, work)
}

// AddMaterial declares a material item.
func (p *Planner) AddMaterial(debugName string, work any) (ItemID, error) {
	return p.add(KindMaterial, debugName, work)
}

// AddGeometry declares a geometry item.
func (p *Planner) AddGeometry(debugName string, work any) (ItemID, error) {
	return p.add(KindGeometry, debugName, work)
}

// AddScene declares a scene item.
func (p *Planner) AddScene(debugName string, work any) (ItemID, error) {
	return p.add(KindScene, debugName, work)
}

func (p *Planner) add(kind Kind, debugName string, work any) (ItemID, error) {
	if p.sealed {
		return 0, diag.Wrap(diag.ErrSealed, "plan", "add", debugName, nil)
	}
	id := ItemID(len(p.items))
	p.items = append(p.items, Item{ID: id, Kind: kind, DebugName: debugName, Work: work})
	p.producers = append(p.producers, nil)
	return id, nil
}

// AddDependency records that consumer must not cook before producer has
// been emitted. Duplicate edges for the same pair are silently deduplicated.
func (p *Planner) AddDependency(consumer, producer ItemID) error {
	if p.sealed {
		return diag.Wrap(diag.ErrSealed, "plan", "add_dependency", "", nil)
	}
	if int(consumer) >= len(p.items) {
		return diag.Wrap(diag.ErrValidation, "plan", "add_dependency", fmt.Sprintf("unknown consumer %d", consumer), nil)
	}
	if int(producer) >= len(p.items) {
		return diag.Wrap(diag.ErrValidation, "plan", "add_dependency", fmt.Sprintf("unknown producer %d", producer), nil)
	}
	for _, existing := range p.producers[consumer] {
		if existing == producer {
			return nil
		}
	}
	p.producers[consumer] = append(p.producers[consumer], producer)
	return nil
}

// RegisterPipeline populates the per-kind registry. Registering a kind
// twice replaces the earlier entry, which keeps test doubles cheap.
func (p *Planner) RegisterPipeline(pl Pipeline) error {
	if p.sealed {
		return diag.Wrap(diag.ErrSealed, "plan", "register_pipeline", "", nil)
	}
	if pl == nil {
		return diag.Wrap(diag.ErrValidation, "plan", "register_pipeline", "nil pipeline", nil)
	}
	kind := pl.PipelineKind()
	if kind >= kindCount {
		return diag.Wrap(diag.ErrValidation, "plan", "register_pipeline", fmt.Sprintf("invalid kind %d", kind), nil)
	}
	p.registry[kind] = pl
	return nil
}

// Len reports the number of declared items.
func (p *Planner) Len() int {
	return len(p.items)
}

// MakePlan validates the graph, compiles the deterministic step order, and
// seals the planner. On failure no partial plan is returned.
func (p *Planner) MakePlan() (*Plan, error) {
	if p.sealed {
		return nil, diag.Wrap(diag.ErrSealed, "plan", "make_plan", "plan already sealed", nil)
	}

	if err := p.checkRegistry(); err != nil {
		return nil, err
	}

	n := len(p.items)
	indegree := make([]int, n)
	dependents := make([][]ItemID, n)
	for consumer, producers := range p.producers {
		indegree[consumer] = len(producers)
		for _, producer := range producers {
			dependents[producer] = append(dependents[producer], ItemID(consumer))
		}
	}

	// Stable Kahn: the ready set is a min-heap on item id, so items with no
	// ordering constraint between them schedule in registration order.
	ready := &itemQueue{}
	heap.Init(ready)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			heap.Push(ready, ItemID(i))
		}
	}

	order := make([]ItemID, 0, n)
	for ready.Len() > 0 {
		next := heap.Pop(ready).(ItemID)
		order = append(order, next)
		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}

	if len(order) != n {
		stuck := make([]Item, 0, n-len(order))
		for i := 0; i < n; i++ {
			if indegree[i] > 0 {
				stuck = append(stuck, p.items[i])
			}
		}
		return nil, &CycleError{Items: stuck}
	}

	gates := make([]*gate.Gate, n)
	for i := 0; i < n; i++ {
		producers := p.producers[i]
		ids := make([]uint32, len(producers))
		for j, producer := range producers {
			ids[j] = uint32(producer)
		}
		gates[i] = gate.New(ids)
	}

	steps := make([]Step, n)
	for i, id := range order {
		steps[i] = Step{Item: id, Gate: gates[id]}
	}

	p.sealed = true
	return &Plan{
		items:      p.items,
		steps:      steps,
		dependents: dependents,
		gates:      gates,
		registry:   p.registry,
	}, nil
}

func (p *Planner) checkRegistry() error {
	var missing []Kind
	var items []string
	seen := [kindCount]bool{}
	for _, item := range p.items {
		if p.registry[item.Kind] != nil {
			continue
		}
		if !seen[item.Kind] {
			seen[item.Kind] = true
			missing = append(missing, item.Kind)
		}
		items = append(items, item.DebugName)
	}
	if len(missing) > 0 {
		return &MissingPipelineError{Kinds: missing, Items: items}
	}
	return nil
}

type itemQueue []ItemID

func (q itemQueue) Len() int           { return len(q) }
func (q itemQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q itemQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *itemQueue) Push(x any) {
	*q = append(*q, x.(ItemID))
}

func (q *itemQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
