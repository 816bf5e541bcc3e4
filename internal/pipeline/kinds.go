package pipeline

import (
	"context"
	"fmt"

	"kiln/internal/cook"
	"kiln/internal/plan"
)

// Options sizes the per-job pipelines and carries cook configuration shared
// by every kind.
type Options struct {
	Workers    int
	QueueDepth int
	Run        cook.Runner
	Texture    cook.TextureOptions
	Buffer     cook.BufferOptions
}

func (o Options) runner() cook.Runner {
	if o.Run != nil {
		return o.Run
	}
	return cook.RunInline
}

// NewTexture builds the texture pipeline.
func NewTexture(o Options) *Pipeline[cook.TextureInput, cook.CookedTexture] {
	run := o.runner()
	return New(plan.KindTexture, o.Workers, o.QueueDepth, func(ctx context.Context, in cook.TextureInput) (cook.CookedTexture, error) {
		return cook.CookTexture(ctx, run, in, o.Texture)
	})
}

// NewBuffer builds the buffer pipeline.
func NewBuffer(o Options) *Pipeline[cook.BufferInput, cook.CookedBuffer] {
	run := o.runner()
	return New(plan.KindBuffer, o.Workers, o.QueueDepth, func(ctx context.Context, in cook.BufferInput) (cook.CookedBuffer, error) {
		return cook.CookBuffer(ctx, run, in, o.Buffer)
	})
}

// NewAudio builds the audio clip pipeline.
func NewAudio(o Options) *Pipeline[cook.AudioInput, cook.CookedAsset] {
	run := o.runner()
	return New(plan.KindAudio, o.Workers, o.QueueDepth, func(ctx context.Context, in cook.AudioInput) (cook.CookedAsset, error) {
		return cook.CookAudio(ctx, run, in)
	})
}

// NewMaterial builds the material pipeline.
func NewMaterial(o Options) *Pipeline[cook.MaterialInput, cook.CookedAsset] {
	run := o.runner()
	return New(plan.KindMaterial, o.Workers, o.QueueDepth, func(ctx context.Context, in cook.MaterialInput) (cook.CookedAsset, error) {
		return cook.CookMaterial(ctx, run, in)
	})
}

// NewGeometry builds the geometry pipeline.
func NewGeometry(o Options) *Pipeline[cook.GeometryInput, cook.CookedAsset] {
	run := o.runner()
	return New(plan.KindGeometry, o.Workers, o.QueueDepth, func(ctx context.Context, in cook.GeometryInput) (cook.CookedAsset, error) {
		return cook.CookGeometry(ctx, run, in)
	})
}

// NewScene builds the scene pipeline.
func NewScene(o Options) *Pipeline[cook.SceneInput, cook.CookedAsset] {
	run := o.runner()
	return New(plan.KindScene, o.Workers, o.QueueDepth, func(ctx context.Context, in cook.SceneInput) (cook.CookedAsset, error) {
		return cook.CookScene(ctx, run, in)
	})
}

// Set bundles one pipeline per kind for a single job.
type Set struct {
	lines map[plan.Kind]Line
}

// NewSet builds all six kind pipelines from shared options.
func NewSet(o Options) *Set {
	return &Set{lines: map[plan.Kind]Line{
		plan.KindTexture:  NewTexture(o),
		plan.KindBuffer:   NewBuffer(o),
		plan.KindAudio:    NewAudio(o),
		plan.KindMaterial: NewMaterial(o),
		plan.KindGeometry: NewGeometry(o),
		plan.KindScene:    NewScene(o),
	}}
}

// ForKind returns the pipeline cooking the given kind.
func (s *Set) ForKind(kind plan.Kind) (Line, error) {
	line, ok := s.lines[kind]
	if !ok {
		return nil, fmt.Errorf("no pipeline for kind %s", kind)
	}
	return line, nil
}

// Lines returns every pipeline in the set in kind order.
func (s *Set) Lines() []Line {
	out := make([]Line, 0, len(s.lines))
	for _, kind := range plan.Kinds() {
		if line, ok := s.lines[kind]; ok {
			out = append(out, line)
		}
	}
	return out
}

// Register installs every pipeline into the planner registry.
func (s *Set) Register(p *plan.Planner) error {
	for _, line := range s.Lines() {
		if err := p.RegisterPipeline(line); err != nil {
			return err
		}
	}
	return nil
}

// PendingCount sums uncollected results across all kinds.
func (s *Set) PendingCount() int {
	total := 0
	for _, line := range s.lines {
		total += line.PendingCount()
	}
	return total
}

// Close shuts every pipeline down.
func (s *Set) Close() {
	for _, line := range s.lines {
		line.Close()
	}
}
