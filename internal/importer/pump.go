package importer

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"kiln/internal/catalog"
	"kiln/internal/cook"
	"kiln/internal/diag"
	"kiln/internal/emit"
	"kiln/internal/logging"
	"kiln/internal/manifest"
	"kiln/internal/pipeline"
	"kiln/internal/plan"
	"kiln/internal/session"
)

// diagnoser is implemented by plan and request errors that render
// themselves as job diagnostics.
type diagnoser interface {
	Diagnostic() diag.Diagnostic
}

// pump drives one job end to end on the job goroutine: compile the plan,
// cook through the pipelines, emit in compiled order, finalize the session.
// It always returns a report; the asset list is nil for cancelled jobs.
func (s *Service) pump(j *job) (*Report, []catalog.Asset) {
	log := s.log.With(logging.String(logging.FieldJobID, string(j.id)))

	if j.ctx.Err() != nil {
		log.Info("job cancelled before start")
		return s.bareReport(j, StatusCancelled, []diag.Diagnostic{
			diag.Error(diag.CodeCancelled, "import cancelled before it started"),
		}), nil
	}

	total := len(j.req.Items)
	log.Info("import started",
		logging.String("label", j.req.Label),
		logging.Int(logging.FieldCount, total))
	j.setStatus(StatusParsing)
	j.notifyProgress(Progress{JobID: j.id, Status: StatusParsing, Total: total})

	pipes := pipeline.NewSet(pipeline.Options{
		Workers:    s.cfg.Cooking.PipelineWorkers,
		QueueDepth: s.cfg.Cooking.PipelineQueueDepth,
		Run:        pipeline.PoolRunner(s.pool),
		Texture:    cook.TextureOptions{RowAlignment: s.cfg.Cooking.TextureRowAlignment},
		Buffer:     cook.BufferOptions{DataAlignment: s.cfg.Cooking.DataAlignment},
	})

	pl, ids, err := s.compile(j, pipes)
	if err != nil {
		pipes.Close()
		log.Error("plan rejected", logging.Error(err))
		return s.bareReport(j, StatusFailed, []diag.Diagnostic{planDiagnostic(err)}), nil
	}
	log.Debug("plan compiled", logging.Int(logging.FieldCount, pl.Len()))

	dir := filepath.Join(s.cfg.OutputRoot(), string(j.id))
	sess, err := session.New(string(j.id), dir, session.Options{
		Writers:        s.cfg.Cooking.IOWriters,
		AssetAlignment: s.cfg.Cooking.DataAlignment,
		Logger:         s.log,
	})
	if err != nil {
		pipes.Close()
		log.Error("session open failed", logging.Error(err))
		return s.bareReport(j, StatusFailed, []diag.Diagnostic{diag.FromError(diag.CodeWriteFailed, err)}), nil
	}

	j.setStatus(StatusCooking)
	j.notifyProgress(Progress{JobID: j.id, Status: StatusCooking, Total: total})

	run := &jobRun{svc: s, job: j, log: log, plan: pl, ids: ids, pipes: pipes, sess: sess}
	run.cook()

	cancelled := j.ctx.Err() != nil
	if cancelled {
		sess.Cancel()
	} else {
		j.setStatus(StatusWriting)
		j.notifyProgress(Progress{JobID: j.id, Status: StatusWriting, Completed: run.emitted, Total: total})
	}

	// The job context may already be dead; finalize must still drain or
	// discard the emitter queues.
	sessRep := sess.Finalize(context.Background())

	status := StatusComplete
	success := sessRep.Success && !run.aborted
	switch {
	case cancelled:
		status = StatusCancelled
		success = false
	case !success:
		status = StatusFailed
	}

	finished := time.Now()
	rep := &Report{
		JobID:        j.id,
		Label:        j.req.Label,
		Status:       status,
		Success:      success,
		Cancelled:    cancelled,
		OutputDir:    sessRep.Dir,
		ManifestPath: sessRep.ManifestPath,
		Files:        sessRep.Files,
		Counts:       sessRep.Counts,
		Diagnostics:  sessRep.Diagnostics,
		CreatedAt:    j.created,
		FinishedAt:   finished,
		Duration:     finished.Sub(j.created),
	}
	if cancelled {
		log.Info("import cancelled", logging.Duration(logging.FieldDuration, rep.Duration))
		return rep, nil
	}
	log.Info("import finished",
		logging.Bool("success", rep.Success),
		logging.Int("errors", rep.ErrorCount()),
		logging.Int("warnings", rep.WarningCount()),
		logging.Duration(logging.FieldDuration, rep.Duration))
	return rep, run.assets
}

// bareReport covers terminal outcomes reached before any output exists.
func (s *Service) bareReport(j *job, status Status, diags []diag.Diagnostic) *Report {
	finished := time.Now()
	return &Report{
		JobID:       j.id,
		Label:       j.req.Label,
		Status:      status,
		Cancelled:   status == StatusCancelled,
		Diagnostics: diags,
		CreatedAt:   j.created,
		FinishedAt:  finished,
		Duration:    finished.Sub(j.created),
	}
}

// compile registers the request items, their explicit and referential
// dependencies, and the pipeline set, then seals the plan.
func (s *Service) compile(j *job, pipes *pipeline.Set) (*plan.Plan, []plan.ItemID, error) {
	planner := plan.NewPlanner()
	ids := make([]plan.ItemID, len(j.req.Items))
	for i, item := range j.req.Items {
		name := item.DebugName()
		var (
			id  plan.ItemID
			err error
		)
		switch item.Kind {
		case plan.KindTexture:
			id, err = planner.AddTexture(name, i)
		case plan.KindBuffer:
			id, err = planner.AddBuffer(name, i)
		case plan.KindAudio:
			id, err = planner.AddAudio(name, i)
		case plan.KindMaterial:
			id, err = planner.AddMaterial(name, i)
		case plan.KindGeometry:
			id, err = planner.AddGeometry(name, i)
		case plan.KindScene:
			id, err = planner.AddScene(name, i)
		}
		if err != nil {
			return nil, nil, err
		}
		ids[i] = id
	}
	for i, item := range j.req.Items {
		for _, dep := range item.Deps {
			if err := planner.AddDependency(ids[i], ids[j.index[dep]]); err != nil {
				return nil, nil, err
			}
		}
		for _, ref := range item.refs() {
			if err := planner.AddDependency(ids[i], ids[j.index[ref]]); err != nil {
				return nil, nil, err
			}
		}
	}
	if err := pipes.Register(planner); err != nil {
		return nil, nil, err
	}
	pl, err := planner.MakePlan()
	if err != nil {
		return nil, nil, err
	}
	return pl, ids, nil
}

func planDiagnostic(err error) diag.Diagnostic {
	var d diagnoser
	if errors.As(err, &d) {
		return d.Diagnostic()
	}
	return diag.FromError(diag.CodePlanRejected, err)
}

// jobRun holds the mutable cooking state for one job. All fields are owned
// by the job goroutine; the collector goroutines touch only the fan-in
// channel.
type jobRun struct {
	svc   *Service
	job   *job
	log   *slog.Logger
	plan  *plan.Plan
	ids   []plan.ItemID
	pipes *pipeline.Set
	sess  *session.Session

	resolved  []uint32
	results   []*pipeline.Result[any]
	posByItem []int
	assets    []catalog.Asset
	emitted   int
	aborted   bool
}

// cook walks the compiled step order twice over: a submit cursor that
// advances while gates are open, and an emit cursor that consumes results
// strictly in step order so table indices are deterministic. Because the
// order is topological, the emit cursor can only stall on a result that is
// already in flight, never on an unsubmitted step.
func (r *jobRun) cook() {
	steps := r.plan.Steps()
	n := len(steps)

	r.resolved = make([]uint32, n)
	r.results = make([]*pipeline.Result[any], n)
	r.posByItem = make([]int, n)
	for i, step := range steps {
		r.posByItem[step.Item] = i
	}

	// Collectors outlive job cancellation so the drain below always
	// completes. Capacity n means a collector never blocks on delivery.
	fanIn := make(chan pipeline.Result[any], n)
	collectCtx, stopCollect := context.WithCancel(context.Background())
	defer stopCollect()

	var collectors sync.WaitGroup
	for _, line := range r.pipes.Lines() {
		collectors.Add(1)
		go func(line pipeline.Line) {
			defer collectors.Done()
			for {
				res, err := line.CollectWork(collectCtx)
				if err != nil {
					return
				}
				fanIn <- res
			}
		}(line)
	}

	submitted, collected := 0, 0
	for r.emitted < n && r.job.ctx.Err() == nil && !r.aborted {
		for submitted < n && steps[submitted].Gate.IsReady() {
			if err := r.submit(steps[submitted]); err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					r.sess.AddDiagnostic(diag.FromError(diag.CodeCookFailed, err))
					r.aborted = true
				}
				break
			}
			submitted++
		}
		if r.job.ctx.Err() != nil || r.aborted {
			break
		}

		progressed := false
		for r.emitted < n && r.results[r.emitted] != nil {
			if err := r.emit(steps[r.emitted], r.results[r.emitted]); err != nil {
				r.sess.AddDiagnostic(diag.FromError(diag.CodeWriteFailed, err))
				r.aborted = true
				break
			}
			r.emitted++
			progressed = true
		}
		if progressed || r.emitted == n || r.aborted {
			continue
		}

		select {
		case res := <-fanIn:
			collected++
			r.results[r.posByItem[res.Source]] = &res
		case <-r.job.ctx.Done():
		}
	}

	// Collect every submitted result before closing so no pipeline worker
	// is left blocked on delivery.
	for collected < submitted {
		res := <-fanIn
		collected++
		r.results[r.posByItem[res.Source]] = &res
	}
	stopCollect()
	collectors.Wait()
	r.pipes.Close()
}

func (r *jobRun) submit(step plan.Step) error {
	item := r.plan.Item(step.Item)
	line, err := r.pipes.ForKind(item.Kind)
	if err != nil {
		return err
	}
	return line.SubmitWork(r.job.ctx, step.Item, r.workFor(item))
}

// workFor builds the cook input for one item. Material and scene payloads
// carry key references; those resolve here, after every producer has been
// emitted and assigned its table index.
func (r *jobRun) workFor(item plan.Item) any {
	req := r.job.req.Items[item.Work.(int)]
	switch p := req.Payload.(type) {
	case MaterialSpec:
		in := p.Input
		in.AlbedoTexture = r.refIndex(p.Albedo)
		in.NormalTexture = r.refIndex(p.Normal)
		in.MetalRoughTexture = r.refIndex(p.MetalRough)
		return in
	case SceneSpec:
		in := cook.SceneInput{Nodes: make([]cook.SceneNode, len(p.Nodes))}
		for i, node := range p.Nodes {
			out := cook.SceneNode{
				Geometry:    r.refIndex(node.Geometry),
				Material:    r.refIndex(node.Material),
				Translation: node.Translation,
				Rotation:    node.Rotation,
				Scale:       node.Scale,
			}
			if out.Rotation == ([4]float32{}) {
				out.Rotation = [4]float32{0, 0, 0, 1}
			}
			if out.Scale == ([3]float32{}) {
				out.Scale = [3]float32{1, 1, 1}
			}
			in.Nodes[i] = out
		}
		return in
	default:
		return req.Payload
	}
}

func (r *jobRun) refIndex(key string) uint32 {
	if key == "" {
		return cook.NoIndex
	}
	return r.resolved[r.ids[r.job.index[key]]]
}

// emit publishes one completed result: fallback substitution on cook
// failure, table emission with dedup, manifest and catalog tracking, and
// gate notifications for dependent steps.
func (r *jobRun) emit(step plan.Step, res *pipeline.Result[any]) error {
	item := r.plan.Item(step.Item)
	req := r.job.req.Items[item.Work.(int)]
	name := item.DebugName

	for _, d := range res.Diags {
		r.sess.AddDiagnostic(d.ForItem(name))
	}
	if !res.OK {
		r.sess.AddDiagnostic(diag.Warning(diag.CodeCookFallback, "substituted fallback output").ForItem(name))
		r.log.Warn("cook failed, fallback substituted",
			logging.String(logging.FieldItem, name),
			logging.String(logging.FieldKind, item.Kind.String()),
			logging.Error(res.Err))
	}

	var (
		index uint32
		added bool
		table uint32
		sig   [manifest.SigLen]byte
	)
	switch item.Kind {
	case plan.KindTexture:
		em, err := r.sess.Textures()
		if err != nil {
			return err
		}
		cooked, ok := res.Out.(cook.CookedTexture)
		if !res.OK || !ok {
			cooked = cook.FallbackTexture(cook.TextureOptions{RowAlignment: r.svc.cfg.Cooking.TextureRowAlignment})
		}
		index, added = em.Emit(cooked)
		table = manifest.TableTexture
		sig = em.Record(index).Sig
	case plan.KindBuffer:
		em, err := r.sess.Buffers()
		if err != nil {
			return err
		}
		cooked, ok := res.Out.(cook.CookedBuffer)
		if !res.OK || !ok {
			cooked = cook.FallbackBuffer(cook.BufferOptions{DataAlignment: r.svc.cfg.Cooking.DataAlignment})
		}
		index, added = em.Emit(cooked)
		table = manifest.TableBuffer
		sig = em.Record(index).Sig
	default:
		em, err := r.sess.Assets()
		if err != nil {
			return err
		}
		cooked, ok := res.Out.(cook.CookedAsset)
		if !res.OK || !ok {
			cooked = cook.FallbackAsset(item.Kind)
		}
		index, added = em.Emit(cooked)
		table = manifest.TableAsset
		sig = em.Record(index).Sig
	}

	r.resolved[step.Item] = index
	r.sess.TrackAsset(manifest.Asset{
		Key:    req.Key,
		Source: req.Source,
		Kind:   uint32(item.Kind),
		Table:  table,
		Index:  index,
		Sig:    sig,
	})
	r.assets = append(r.assets, catalog.Asset{
		JobID:     string(r.job.id),
		Key:       req.Key,
		Source:    req.Source,
		Kind:      item.Kind.String(),
		TableName: tableFileName(table),
		Index:     index,
		Signature: hex.EncodeToString(sig[:]),
	})

	for _, dep := range r.plan.Dependents(step.Item) {
		r.plan.Gate(dep).MarkReady(uint32(step.Item))
	}

	r.log.Debug("item emitted",
		logging.String(logging.FieldItem, name),
		logging.String(logging.FieldKind, item.Kind.String()),
		logging.Uint64(logging.FieldIndex, uint64(index)),
		logging.Bool("deduplicated", !added))
	r.job.notifyProgress(Progress{
		JobID:     r.job.id,
		Status:    StatusCooking,
		Completed: r.emitted + 1,
		Total:     r.plan.Len(),
		Item:      name,
	})
	return nil
}

func tableFileName(table uint32) string {
	switch table {
	case manifest.TableTexture:
		return emit.TextureTableName
	case manifest.TableBuffer:
		return emit.BufferTableName
	default:
		return emit.AssetTableName
	}
}
