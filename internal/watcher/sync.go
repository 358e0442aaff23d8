package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/scadform/scadform/internal/logging"
	"github.com/scadform/scadform/internal/params"
	"github.com/scadform/scadform/internal/registry"
)

// RegistrySync feeds debounced file changes into the parameter registry.
// Created and modified files are re-extracted; deleted files are dropped.
type RegistrySync struct {
	registry *registry.ParamRegistry
	logger   logging.Logger
}

func NewRegistrySync(reg *registry.ParamRegistry, logger logging.Logger) *RegistrySync {
	return &RegistrySync{
		registry: reg,
		logger:   logger.WithComponent("watcher"),
	}
}

// Handle implements ChangeHandler. A file that cannot be read is skipped; the
// rest of the batch still applies.
func (s *RegistrySync) Handle(events []ChangeEvent) error {
	ctx := context.Background()

	for _, event := range events {
		if event.Type == EventDeleted {
			s.registry.Remove(event.Path)
			s.logger.Info(ctx, "parameter set removed", "path", event.Path)
			continue
		}

		source, err := os.ReadFile(event.Path)
		if err != nil {
			s.logger.Warn(ctx, err, "skipping unreadable file", "path", event.Path)
			continue
		}

		descriptors := params.Extract(string(source))
		s.registry.Register(&registry.ParamSet{
			Path:        event.Path,
			Source:      string(source),
			Descriptors: descriptors,
		})
		s.logger.Info(ctx, "parameter set registered",
			"path", event.Path, "parameters", len(descriptors))
	}

	return nil
}

// Seed walks root once and registers every source file found, so the
// registry is populated before the first change event arrives.
func (s *RegistrySync) Seed(root string) error {
	var events []ChangeEvent
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if hiddenDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !SourceFilter(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		events = append(events, ChangeEvent{
			Type:    EventCreated,
			Path:    path,
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("seeding registry: %w", err)
	}

	return s.Handle(events)
}
