package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"kiln/internal/diag"
	"kiln/internal/emit"
	"kiln/internal/logging"
	"kiln/internal/manifest"
)

// Options configures a session.
type Options struct {
	// Writers is the writer goroutine count per data file.
	Writers int
	// AssetAlignment is the placement alignment of the shared asset file.
	AssetAlignment int
	Logger         *slog.Logger
}

// Session accumulates one job's outputs.
type Session struct {
	jobID   string
	dir     string
	opts    Options
	log     *slog.Logger
	started time.Time

	diags     *diag.Collector
	cancelled atomic.Bool

	textures *emit.TextureEmitter
	buffers  *emit.BufferEmitter
	assets   *emit.AssetEmitter

	entries []manifest.Asset
	report  *Report
}

// Counts summarizes emitted payloads.
type Counts struct {
	Textures     int
	Buffers      int
	Assets       int
	Tracked      int
	Deduplicated int
}

// Report is the outcome of Finalize.
type Report struct {
	JobID        string
	Dir          string
	Success      bool
	Cancelled    bool
	Diagnostics  []diag.Diagnostic
	Files        []manifest.File
	ManifestPath string
	Counts       Counts
	Duration     time.Duration
}

// New creates the job output directory and an empty session over it.
func New(jobID, dir string, opts Options) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, diag.Wrap(diag.ErrIO, "session", "new", "create job directory", err)
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	return &Session{
		jobID:   jobID,
		dir:     dir,
		opts:    opts,
		log:     log.With(logging.String(logging.FieldJobID, jobID)),
		started: time.Now(),
		diags:   &diag.Collector{},
	}, nil
}

// JobID returns the owning job id.
func (s *Session) JobID() string { return s.jobID }

// Dir returns the job output directory.
func (s *Session) Dir() string { return s.dir }

// Textures returns the texture emitter, creating it on first use.
func (s *Session) Textures() (*emit.TextureEmitter, error) {
	if s.textures == nil {
		e, err := emit.NewTextureEmitter(s.dir, s.opts.Writers)
		if err != nil {
			return nil, err
		}
		s.textures = e
		s.log.Debug("texture emitter opened", logging.String(logging.FieldEmitter, "texture"))
	}
	return s.textures, nil
}

// Buffers returns the buffer emitter, creating it on first use.
func (s *Session) Buffers() (*emit.BufferEmitter, error) {
	if s.buffers == nil {
		e, err := emit.NewBufferEmitter(s.dir, s.opts.Writers)
		if err != nil {
			return nil, err
		}
		s.buffers = e
		s.log.Debug("buffer emitter opened", logging.String(logging.FieldEmitter, "buffer"))
	}
	return s.buffers, nil
}

// Assets returns the shared asset emitter, creating it on first use.
func (s *Session) Assets() (*emit.AssetEmitter, error) {
	if s.assets == nil {
		e, err := emit.NewAssetEmitter(s.dir, s.opts.Writers, s.opts.AssetAlignment)
		if err != nil {
			return nil, err
		}
		s.assets = e
		s.log.Debug("asset emitter opened", logging.String(logging.FieldEmitter, "asset"))
	}
	return s.assets, nil
}

// AddDiagnostic records one diagnostic. Safe from any goroutine.
func (s *Session) AddDiagnostic(d diag.Diagnostic) {
	s.diags.Add(d)
}

// Diagnostics returns a snapshot of everything recorded so far.
func (s *Session) Diagnostics() []diag.Diagnostic {
	return s.diags.Snapshot()
}

// TrackAsset records the manifest entry for one declared item.
func (s *Session) TrackAsset(a manifest.Asset) {
	s.entries = append(s.entries, a)
}

// Cancel marks the session cancelled. Finalize then tears down instead of
// publishing. Safe from any goroutine.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// PendingWrites sums queued writes across the created emitters.
func (s *Session) PendingWrites() int {
	total := 0
	if s.textures != nil {
		total += s.textures.PendingCount()
	}
	if s.buffers != nil {
		total += s.buffers.PendingCount()
	}
	if s.assets != nil {
		total += s.assets.PendingCount()
	}
	return total
}

// Finalize settles every created emitter and, unless the session was
// cancelled, writes the manifest last. Emitter failures still produce a
// manifest with success false. Repeated calls return the first report.
func (s *Session) Finalize(ctx context.Context) *Report {
	if s.report != nil {
		return s.report
	}
	rep := &Report{JobID: s.jobID, Dir: s.dir, Cancelled: s.cancelled.Load()}
	s.report = rep

	if rep.Cancelled {
		s.discardAll(ctx)
		s.diags.Add(diag.Error(diag.CodeCancelled, "import cancelled before completion"))
		rep.Diagnostics = s.diags.Snapshot()
		rep.Duration = time.Since(s.started)
		s.log.Info("session cancelled",
			logging.Duration(logging.FieldDuration, rep.Duration))
		return rep
	}

	ok := true
	if s.textures != nil {
		if err := s.textures.Finalize(ctx); err != nil {
			ok = false
			s.diags.Add(diag.FromError(diag.CodeWriteFailed, err))
		} else {
			rep.Files = append(rep.Files,
				s.fileEntry(manifest.RoleTextureData, s.textures.DataPath(), uint64(s.textures.Size())),
				s.statEntry(manifest.RoleTextureTable, s.textures.TablePath()))
		}
		rep.Counts.Textures = s.textures.Count()
	}
	if s.buffers != nil {
		if err := s.buffers.Finalize(ctx); err != nil {
			ok = false
			s.diags.Add(diag.FromError(diag.CodeWriteFailed, err))
		} else {
			rep.Files = append(rep.Files,
				s.fileEntry(manifest.RoleBufferData, s.buffers.DataPath(), uint64(s.buffers.Size())),
				s.statEntry(manifest.RoleBufferTable, s.buffers.TablePath()))
		}
		rep.Counts.Buffers = s.buffers.Count()
	}
	if s.assets != nil {
		if err := s.assets.Finalize(ctx); err != nil {
			ok = false
			s.diags.Add(diag.FromError(diag.CodeWriteFailed, err))
		} else {
			rep.Files = append(rep.Files,
				s.fileEntry(manifest.RoleAssetData, s.assets.DataPath(), uint64(s.assets.Size())),
				s.statEntry(manifest.RoleAssetTable, s.assets.TablePath()))
		}
		rep.Counts.Assets = s.assets.Count()
	}

	rep.Counts.Tracked = len(s.entries)
	if dedup := rep.Counts.Tracked - (rep.Counts.Textures + rep.Counts.Buffers + rep.Counts.Assets); dedup > 0 {
		rep.Counts.Deduplicated = dedup
	}

	mf := &manifest.Manifest{
		Success: ok,
		Created: s.started,
		Files:   rep.Files,
		Assets:  s.entries,
	}
	path := filepath.Join(s.dir, manifest.FileName)
	if err := mf.WriteFile(path); err != nil {
		ok = false
		s.diags.Add(diag.FromError(diag.CodeManifestFailed, err))
	} else {
		rep.ManifestPath = path
	}

	rep.Success = ok
	rep.Diagnostics = s.diags.Snapshot()
	rep.Duration = time.Since(s.started)
	s.log.Info("session finalized",
		logging.Bool("success", rep.Success),
		logging.Int("textures", rep.Counts.Textures),
		logging.Int("buffers", rep.Counts.Buffers),
		logging.Int("assets", rep.Counts.Assets),
		logging.Int("deduplicated", rep.Counts.Deduplicated),
		logging.Duration(logging.FieldDuration, rep.Duration))
	return rep
}

func (s *Session) discardAll(ctx context.Context) {
	if s.textures != nil {
		if err := s.textures.Discard(ctx); err != nil {
			s.diags.Add(diag.FromError(diag.CodeWriteFailed, err))
		}
	}
	if s.buffers != nil {
		if err := s.buffers.Discard(ctx); err != nil {
			s.diags.Add(diag.FromError(diag.CodeWriteFailed, err))
		}
	}
	if s.assets != nil {
		if err := s.assets.Discard(ctx); err != nil {
			s.diags.Add(diag.FromError(diag.CodeWriteFailed, err))
		}
	}
}

func (s *Session) fileEntry(role uint32, path string, size uint64) manifest.File {
	return manifest.File{Role: role, Path: filepath.Base(path), Size: size}
}

func (s *Session) statEntry(role uint32, path string) manifest.File {
	entry := manifest.File{Role: role, Path: filepath.Base(path)}
	if info, err := os.Stat(path); err == nil {
		entry.Size = uint64(info.Size())
	}
	return entry
}
