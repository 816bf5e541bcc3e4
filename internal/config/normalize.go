package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCooking()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputRoot) == "" {
		c.Paths.OutputRoot = defaultOutputRoot
	}
	if c.Paths.OutputRoot, err = expandPath(c.Paths.OutputRoot); err != nil {
		return fmt.Errorf("paths.output_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		c.Paths.CatalogPath = defaultCatalogPath
	}
	if c.Paths.CatalogPath, err = expandPath(c.Paths.CatalogPath); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeCooking() {
	if c.Cooking.MaxConcurrentJobs == 0 {
		c.Cooking.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
	if c.Cooking.PipelineWorkers == 0 {
		c.Cooking.PipelineWorkers = defaultPipelineWorkers
	}
	if c.Cooking.PipelineQueueDepth == 0 {
		c.Cooking.PipelineQueueDepth = defaultPipelineQueueDepth
	}
	if c.Cooking.IOWriters == 0 {
		c.Cooking.IOWriters = defaultIOWriters
	}
	if c.Cooking.WorkerIdleSeconds == 0 {
		c.Cooking.WorkerIdleSeconds = defaultWorkerIdleSeconds
	}
	if c.Cooking.TextureRowAlignment == 0 {
		c.Cooking.TextureRowAlignment = defaultTextureRowAlignment
	}
	if c.Cooking.DataAlignment == 0 {
		c.Cooking.DataAlignment = defaultDataAlignment
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
