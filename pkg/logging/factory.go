// Package logging provides component-aware loggers with consistent field
// naming on top of charmbracelet/log.
package logging

import (
	"github.com/charmbracelet/log"
)

// Factory hands out loggers scoped to a named component.
type Factory struct {
	baseLogger *log.Logger
}

// NewFactory creates a new logger factory.
func NewFactory(baseLogger *log.Logger) *Factory {
	return &Factory{baseLogger: baseLogger}
}

// ForComponent creates a logger for a specific component.
func (lf *Factory) ForComponent(id string) *log.Logger {
	return lf.baseLogger.With("component", id)
}

// ForSource creates a logger for a data source adapter.
func (lf *Factory) ForSource(id string) *log.Logger {
	return lf.baseLogger.With("component", id, "kind", "source")
}

// ForProcessor creates a logger for batch/background processors.
func (lf *Factory) ForProcessor(id string) *log.Logger {
	return lf.baseLogger.With("component", id, "kind", "processor")
}

// ForServer creates a logger for server components.
func (lf *Factory) ForServer(id string) *log.Logger {
	return lf.baseLogger.With("component", id, "kind", "server")
}

// ForDatabase creates a logger for storage components.
func (lf *Factory) ForDatabase(id string) *log.Logger {
	return lf.baseLogger.With("component", id, "kind", "database")
}

// ForAI creates a logger for model-backed components.
func (lf *Factory) ForAI(id string) *log.Logger {
	return lf.baseLogger.With("component", id, "kind", "ai")
}

// WithError adds error context to a logger.
func (lf *Factory) WithError(logger *log.Logger, err error) *log.Logger {
	if err != nil {
		return logger.With("error", err.Error())
	}
	return logger
}
