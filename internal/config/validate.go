package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCooking(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputRoot == "" {
		return errors.New("paths.output_root must be set")
	}
	if c.Paths.CatalogPath == "" {
		return errors.New("paths.catalog_path must be set")
	}
	return nil
}

func (c *Config) validateCooking() error {
	if err := ensurePositiveMap(map[string]int{
		"cooking.max_concurrent_jobs":  c.Cooking.MaxConcurrentJobs,
		"cooking.pipeline_workers":     c.Cooking.PipelineWorkers,
		"cooking.pipeline_queue_depth": c.Cooking.PipelineQueueDepth,
		"cooking.io_writers":           c.Cooking.IOWriters,
		"cooking.worker_idle_seconds":  c.Cooking.WorkerIdleSeconds,
	}); err != nil {
		return err
	}
	if c.Cooking.WorkerPoolSize < 0 {
		return errors.New("cooking.worker_pool_size must not be negative")
	}
	if err := ensurePowerOfTwo("cooking.texture_row_alignment", c.Cooking.TextureRowAlignment); err != nil {
		return err
	}
	return ensurePowerOfTwo("cooking.data_alignment", c.Cooking.DataAlignment)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func ensurePowerOfTwo(name string, value int) error {
	if value <= 0 || value&(value-1) != 0 {
		return fmt.Errorf("%s must be a positive power of two, got %d", name, value)
	}
	return nil
}
