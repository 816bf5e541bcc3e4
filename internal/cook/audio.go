package cook

import (
	"context"
	"encoding/binary"
	"fmt"

	"kiln/internal/plan"
)

// AudioInput is interleaved signed 16-bit little-endian PCM.
type AudioInput struct {
	SampleRate int
	Channels   int
	Normalize  bool
	Samples    []byte
}

const (
	// normalizeTarget leaves headroom below full scale so downstream gain
	// stages cannot clip a normalized clip.
	normalizeTarget = 32000
	maxChannels     = 8
)

func (in AudioInput) validate() error {
	if in.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", in.SampleRate)
	}
	if in.Channels <= 0 || in.Channels > maxChannels {
		return fmt.Errorf("invalid channel count %d", in.Channels)
	}
	frameBytes := 2 * in.Channels
	if len(in.Samples)%frameBytes != 0 {
		return fmt.Errorf("sample data is %d bytes, not a multiple of the %d-byte frame", len(in.Samples), frameBytes)
	}
	return nil
}

// CookAudio validates PCM input, optionally peak-normalizes it, and packs a
// clip payload. Layout: sample rate u32, channels u16, reserved u16, frame
// count u64, then the interleaved samples.
func CookAudio(ctx context.Context, run Runner, in AudioInput) (CookedAsset, error) {
	var out CookedAsset
	if err := in.validate(); err != nil {
		return out, err
	}

	samples := make([]byte, len(in.Samples))
	copy(samples, in.Samples)

	if in.Normalize {
		if err := run(ctx, func() error {
			normalizePCM16(samples)
			return nil
		}); err != nil {
			return out, fmt.Errorf("normalize: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	var payload []byte
	if err := run(ctx, func() error {
		frames := uint64(len(samples) / (2 * in.Channels))
		p := newPacker(16 + len(samples))
		p.u32(uint32(in.SampleRate))
		p.u16(uint16(in.Channels))
		p.u16(0)
		p.u64(frames)
		p.bytes(samples)
		payload = p.done()
		return nil
	}); err != nil {
		return out, fmt.Errorf("clip packing: %w", err)
	}

	out = CookedAsset{Payload: payload, Kind: plan.KindAudio, Version: AudioVersion}
	return out, nil
}

// normalizePCM16 scales all samples so the peak hits normalizeTarget. Silence
// and clips already at or above the target pass through unchanged. The scale
// runs in 32-bit integer arithmetic to stay deterministic across platforms.
func normalizePCM16(samples []byte) {
	peak := int32(0)
	for i := 0; i+1 < len(samples); i += 2 {
		s := int32(int16(binary.LittleEndian.Uint16(samples[i:])))
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak == 0 || peak >= normalizeTarget {
		return
	}
	for i := 0; i+1 < len(samples); i += 2 {
		s := int32(int16(binary.LittleEndian.Uint16(samples[i:])))
		scaled := s * normalizeTarget / peak
		binary.LittleEndian.PutUint16(samples[i:], uint16(int16(scaled)))
	}
}
