package build

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/scadform/scadform/internal/errors"
	"github.com/scadform/scadform/internal/logging"
	"github.com/scadform/scadform/internal/types"
)

// EngineConfig describes the external geometry compiler.
type EngineConfig struct {
	// Command is the engine binary name or path.
	Command string
	// OutputFlag introduces the output artifact path on the invocation line.
	OutputFlag string
	// DefineFlag introduces one name=value override pair.
	DefineFlag string
	// LibraryPathEnv is the environment variable through which the engine
	// discovers staged libraries.
	LibraryPathEnv string
}

// DefaultEngineConfig returns the stock OpenSCAD-shaped engine contract.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Command:        "openscad",
		OutputFlag:     "-o",
		DefineFlag:     "-D",
		LibraryPathEnv: "OPENSCADPATH",
	}
}

// engineBinary is the factory's resident product: a located, probed engine.
type engineBinary struct {
	path    string
	version string
}

// Factory locates and probes the engine once per process lifetime and keeps
// the result resident, amortizing the engine's cold-start cost. A load
// failure leaves the cache empty so a later request may retry.
type Factory struct {
	config EngineConfig
	logger logging.Logger

	group singleflight.Group
	mu    sync.RWMutex
	bin   *engineBinary
}

// NewFactory creates an engine factory. Nothing is loaded until the first
// Acquire call.
func NewFactory(config EngineConfig, logger logging.Logger) *Factory {
	return &Factory{config: config, logger: logger.WithComponent("engine")}
}

// Acquire returns the resident engine, loading it on first use. Concurrent
// first callers await the same in-flight load.
func (f *Factory) Acquire(ctx context.Context) (*engineBinary, error) {
	f.mu.RLock()
	if f.bin != nil {
		bin := f.bin
		f.mu.RUnlock()
		return bin, nil
	}
	f.mu.RUnlock()

	v, err, _ := f.group.Do("load", func() (interface{}, error) {
		f.mu.RLock()
		bin := f.bin
		f.mu.RUnlock()
		if bin != nil {
			return bin, nil
		}

		bin, err := f.load(ctx)
		if err != nil {
			return nil, err
		}

		f.mu.Lock()
		f.bin = bin
		f.mu.Unlock()
		return bin, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*engineBinary), nil
}

// Loaded reports whether the factory cache is populated.
func (f *Factory) Loaded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bin != nil
}

func (f *Factory) load(ctx context.Context) (*engineBinary, error) {
	path, err := exec.LookPath(f.config.Command)
	if err != nil {
		return nil, errors.Wrap(errors.KindEngineLoad, err,
			fmt.Sprintf("locating engine %q", f.config.Command))
	}

	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return nil, errors.Wrap(errors.KindEngineLoad, err,
			fmt.Sprintf("probing engine %q", path))
	}
	version := strings.TrimSpace(string(out))

	f.logger.Info(ctx, "engine loaded", "path", path, "version", version)
	return &engineBinary{path: path, version: version}, nil
}

// Instance is one fresh, private engine execution environment. Instances are
// never reused across requests, so no staged files or variable bindings leak
// between unrelated builds.
type Instance struct {
	bin     *engineBinary
	config  EngineConfig
	workdir string
	sink    LogSink
}

// NewInstance creates a fresh instance with its own private file area.
func (f *Factory) NewInstance(bin *engineBinary, sink LogSink) (*Instance, error) {
	workdir, err := os.MkdirTemp("", "scadform-*")
	if err != nil {
		return nil, fmt.Errorf("creating instance workdir: %w", err)
	}
	if sink == nil {
		sink = NopSink
	}
	return &Instance{bin: bin, config: f.config, workdir: workdir, sink: sink}, nil
}

// Close removes the instance's private file area.
func (i *Instance) Close() error {
	return os.RemoveAll(i.workdir)
}

// LibraryRoot returns the fixed mount root under which dependency file sets
// are staged.
func (i *Instance) LibraryRoot() string {
	return filepath.Join(i.workdir, "libraries")
}

// StageSource writes the effective source text into the private file area
// and returns its path.
func (i *Instance) StageSource(source string) (string, error) {
	path := filepath.Join(i.workdir, "input.scad")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("staging source: %w", err)
	}
	return path, nil
}

// OutputPath returns where the engine is told to write the artifact.
func (i *Instance) OutputPath() string {
	return filepath.Join(i.workdir, "output.stl")
}

// Run executes the engine entry point, relaying stdout and stderr to the
// sink line by line as they are produced. The returned status is the
// engine's completion status; a non-zero status is recorded but is not
// itself an error. A non-nil error means the engine could not be executed
// at all.
func (i *Instance) Run(ctx context.Context, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, i.bin.path, args...)
	cmd.Dir = i.workdir
	cmd.Env = append(os.Environ(), i.config.LibraryPathEnv+"="+i.LibraryRoot())

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("attaching stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("attaching stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting engine: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go relayLines(&wg, stdout, types.LogInfo, i.sink)
	go relayLines(&wg, stderr, types.LogError, i.sink)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("waiting for engine: %w", err)
	}
	return 0, nil
}

// Artifact reads the output artifact from the private file area. The bytes
// are owned by the caller. ok is false when the engine produced nothing.
func (i *Instance) Artifact() (data []byte, ok bool, err error) {
	data, err = os.ReadFile(i.OutputPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}
