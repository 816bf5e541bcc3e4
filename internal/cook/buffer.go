package cook

import (
	"context"
	"fmt"
)

// BufferUsage identifies the GPU binding a cooked buffer targets. It selects
// the placement alignment the emitter applies.
type BufferUsage uint32

const (
	BufferRaw     BufferUsage = 0
	BufferVertex  BufferUsage = 1
	BufferIndex   BufferUsage = 2
	BufferUniform BufferUsage = 3
)

var bufferUsageNames = map[BufferUsage]string{
	BufferRaw:     "raw",
	BufferVertex:  "vertex",
	BufferIndex:   "index",
	BufferUniform: "uniform",
}

func (u BufferUsage) String() string {
	if name, ok := bufferUsageNames[u]; ok {
		return name
	}
	return fmt.Sprintf("usage(%d)", uint32(u))
}

// ParseBufferUsage resolves a usage name used in bakefiles.
func ParseBufferUsage(name string) (BufferUsage, error) {
	for u, n := range bufferUsageNames {
		if n == name {
			return u, nil
		}
	}
	return 0, fmt.Errorf("unknown buffer usage %q", name)
}

// Alignment returns the placement boundary required for the usage. Uniform
// buffers bind at 256-byte offsets on the targeted backends; everything else
// packs at the data-file default.
func (u BufferUsage) Alignment(dataAlign int) uint32 {
	if u == BufferUniform {
		return 256
	}
	if dataAlign <= 0 {
		dataAlign = 64
	}
	return uint32(dataAlign)
}

// BufferInput is raw bytes destined for the buffer data file.
type BufferInput struct {
	Usage BufferUsage
	Data  []byte
}

// CookedBuffer is a ready-to-emit buffer payload.
type CookedBuffer struct {
	Payload   []byte
	Usage     BufferUsage
	Alignment uint32
}

// BufferOptions carries job-level cooking configuration.
type BufferOptions struct {
	DataAlignment int
}

// CookBuffer validates and copies a raw buffer. The copy keeps cooked
// payloads independent of caller-owned slices.
func CookBuffer(ctx context.Context, run Runner, in BufferInput, opts BufferOptions) (CookedBuffer, error) {
	var out CookedBuffer
	if _, ok := bufferUsageNames[in.Usage]; !ok {
		return out, fmt.Errorf("unsupported buffer usage %s", in.Usage)
	}
	var payload []byte
	if err := run(ctx, func() error {
		payload = make([]byte, len(in.Data))
		copy(payload, in.Data)
		return nil
	}); err != nil {
		return out, fmt.Errorf("buffer copy: %w", err)
	}
	out = CookedBuffer{
		Payload:   payload,
		Usage:     in.Usage,
		Alignment: in.Usage.Alignment(opts.DataAlignment),
	}
	return out, nil
}
