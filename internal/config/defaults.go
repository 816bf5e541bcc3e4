package config

const (
	defaultOutputRoot          = "~/.local/share/kiln/cooked"
	defaultLogDir              = "~/.local/share/kiln/logs"
	defaultCatalogPath         = "~/.local/share/kiln/catalog.db"
	defaultMaxConcurrentJobs   = 2
	defaultPipelineWorkers     = 2
	defaultPipelineQueueDepth  = 8
	defaultIOWriters           = 2
	defaultWorkerIdleSeconds   = 30
	defaultTextureRowAlignment = 256
	defaultDataAlignment       = 64
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputRoot:  defaultOutputRoot,
			LogDir:      defaultLogDir,
			CatalogPath: defaultCatalogPath,
		},
		Cooking: Cooking{
			MaxConcurrentJobs:   defaultMaxConcurrentJobs,
			PipelineWorkers:     defaultPipelineWorkers,
			PipelineQueueDepth:  defaultPipelineQueueDepth,
			IOWriters:           defaultIOWriters,
			WorkerIdleSeconds:   defaultWorkerIdleSeconds,
			TextureRowAlignment: defaultTextureRowAlignment,
			DataAlignment:       defaultDataAlignment,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
