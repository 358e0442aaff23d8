// Package build orchestrates geometry compilation: it owns the engine
// factory's lifecycle, resolves library dependencies through the dependency
// cache, stages inputs into a fresh engine instance, and classifies the
// outcome by output-artifact presence rather than by process exit status.
package build

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scadform/scadform/internal/deps"
	"github.com/scadform/scadform/internal/errors"
	"github.com/scadform/scadform/internal/logging"
	"github.com/scadform/scadform/internal/types"
)

// Orchestrator executes compile requests. Callers typically run one request
// at a time; the factory and dependency caches are nonetheless safe under
// concurrent requests, each population shared by its in-flight callers.
type Orchestrator struct {
	factory *Factory
	deps    *deps.Cache
	library deps.Library
	cache   *ArtifactCache
	metrics *Metrics
	logger  logging.Logger
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(factory *Factory, depCache *deps.Cache, library deps.Library, cache *ArtifactCache, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		factory: factory,
		deps:    depCache,
		library: library,
		cache:   cache,
		metrics: &Metrics{},
		logger:  logger.WithComponent("build"),
	}
}

// Metrics returns a snapshot of the orchestrator's counters.
func (o *Orchestrator) Metrics() MetricsSnapshot {
	return o.metrics.Snapshot()
}

// Compile turns an effective source text plus overrides into a mesh
// artifact. Engine log lines stream into sink as they are produced. On
// failure the returned error is classified (see the errors package); the
// caller never receives a partial artifact, and no retries are attempted.
func (o *Orchestrator) Compile(ctx context.Context, req types.CompileRequest, sink LogSink) (result *types.CompileResult, err error) {
	if sink == nil {
		sink = NopSink
	}
	start := time.Now()
	cacheHit := false
	defer func() {
		o.metrics.record(time.Since(start), err, cacheHit)
	}()

	key := o.cache.Key(req.Source, req.Overrides)
	if artifact, ok := o.cache.Get(key); ok {
		cacheHit = true
		sink.Log("artifact served from cache", types.LogInfo)
		return &types.CompileResult{Artifact: artifact, CacheHit: true}, nil
	}

	bin, err := o.factory.Acquire(ctx)
	if err != nil {
		// Fatal for this request; the factory cache stays empty so a
		// later request may retry the load.
		return nil, err
	}

	var libFiles deps.FileSet
	if referencesLibrary(req.Source, o.library.Name) {
		libFiles, err = o.deps.Resolve(ctx, o.library, func(done, total int) {
			sink.Log(fmt.Sprintf("fetched %d/%d library files", done, total), types.LogInfo)
		})
		if err != nil {
			return nil, err
		}
	}

	instance, err := o.factory.NewInstance(bin, sink)
	if err != nil {
		return nil, err
	}
	defer instance.Close()

	if libFiles != nil {
		if err := deps.Stage(instance.LibraryRoot(), o.library, libFiles); err != nil {
			return nil, err
		}
	}
	inputPath, err := instance.StageSource(req.Source)
	if err != nil {
		return nil, err
	}

	args := buildArgs(instance.config, inputPath, instance.OutputPath(), req.Overrides)

	status, runErr := instance.Run(ctx, args)
	if runErr != nil {
		// The engine never ran; no artifact can exist, which the presence
		// check below turns into the authoritative failure.
		o.logger.Error(ctx, runErr, "engine execution failed")
	} else if status != 0 {
		// Recorded, not authoritative: engines may exit non-zero for
		// warnings while still producing valid output.
		o.logger.Warn(ctx, nil, "engine exited abnormally", "status", status)
	}

	artifact, ok, err := instance.Artifact()
	if err != nil {
		return nil, err
	}
	if !ok {
		// The detailed cause already streamed through the sink.
		return nil, errors.New(errors.KindArtifactMissing, "compilation produced no output")
	}

	o.cache.Set(key, artifact)
	o.logger.Info(ctx, "compile succeeded",
		"bytes", len(artifact), "status", status, "duration", time.Since(start))
	return &types.CompileResult{Artifact: artifact, ExitStatus: status}, nil
}

// referencesLibrary reports whether the source carries an include/use
// directive whose path enters the named library's namespace.
func referencesLibrary(source, library string) bool {
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		var rest string
		switch {
		case strings.HasPrefix(line, "include"):
			rest = line[len("include"):]
		case strings.HasPrefix(line, "use"):
			rest = line[len("use"):]
		default:
			continue
		}
		rest = strings.TrimSpace(rest)
		if !strings.HasPrefix(rest, "<") {
			continue
		}
		end := strings.Index(rest, ">")
		if end < 0 {
			continue
		}
		path := rest[1:end]
		if path == library || strings.HasPrefix(path, library+"/") {
			return true
		}
	}
	return false
}
