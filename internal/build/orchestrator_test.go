package build

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/scadform/scadform/internal/deps"
	"github.com/scadform/scadform/internal/errors"
	"github.com/scadform/scadform/internal/logging"
	"github.com/scadform/scadform/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeEngine installs a shell script standing in for the geometry
// compiler. Every script must answer the factory's --version probe.
func writeFakeEngine(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakescad")
	script := `#!/bin/sh
if [ "$1" = "--version" ]; then
	echo "fakescad 1.0"
	exit 0
fi
` + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func testConfig(command string) EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.Command = command
	return cfg
}

func newTestOrchestrator(t *testing.T, command string, host deps.Host) *Orchestrator {
	t.Helper()
	logger := logging.NewNop()
	factory := NewFactory(testConfig(command), logger)
	depCache := deps.NewCache(host, nil, logger)
	lib := deps.Library{Name: "MCAD", Version: "master"}
	return NewOrchestrator(factory, depCache, lib, NewArtifactCache(16), logger)
}

func TestCompileProducesArtifact(t *testing.T) {
	// Input path first, then the -o pair; the artifact is a copy of the
	// staged source.
	engine := writeFakeEngine(t, `
echo "rendering $1"
cp "$1" "$3"
`)
	o := newTestOrchestrator(t, engine, deps.Host{})

	sink := &CollectingSink{}
	res, err := o.Compile(context.Background(), types.CompileRequest{Source: "cubo = 1;\n"}, sink)
	require.NoError(t, err)
	assert.Equal(t, "cubo = 1;\n", string(res.Artifact))
	assert.Equal(t, 0, res.ExitStatus)
	assert.False(t, res.CacheHit)

	lines := sink.Lines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0].Text, "rendering")
	assert.Equal(t, types.LogInfo, lines[0].Severity)
}

func TestCompileNonZeroExitWithArtifactSucceeds(t *testing.T) {
	engine := writeFakeEngine(t, `
echo "warning: degenerate face" >&2
cp "$1" "$3"
exit 7
`)
	o := newTestOrchestrator(t, engine, deps.Host{})

	sink := &CollectingSink{}
	res, err := o.Compile(context.Background(), types.CompileRequest{Source: "a = 1;\n"}, sink)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Artifact)
	assert.Equal(t, 7, res.ExitStatus)

	var sawWarning bool
	for _, l := range sink.Lines() {
		if strings.Contains(l.Text, "degenerate") {
			sawWarning = true
			assert.Equal(t, types.LogError, l.Severity)
		}
	}
	assert.True(t, sawWarning)
}

func TestCompileZeroExitWithoutArtifactFails(t *testing.T) {
	engine := writeFakeEngine(t, `
echo "nothing to do"
exit 0
`)
	o := newTestOrchestrator(t, engine, deps.Host{})

	res, err := o.Compile(context.Background(), types.CompileRequest{Source: "a = 1;\n"}, nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, errors.KindArtifactMissing, errors.KindOf(err))
}

func TestCompileOverrideSerialization(t *testing.T) {
	// The artifact records the invocation arguments, one per line.
	engine := writeFakeEngine(t, `
out="$3"
shift 3
printf '%s\n' "$@" > "$out"
`)
	o := newTestOrchestrator(t, engine, deps.Host{})

	req := types.CompileRequest{
		Source: "a = 1;\n",
		Overrides: []types.Override{
			{Name: "tamanho_cubo", Value: 55.0, Type: types.ParamNumber},
			{Name: "formato", Value: "quadrado", Type: types.ParamString},
			{Name: "com_tampa", Value: true, Type: types.ParamBool},
		},
	}
	res, err := o.Compile(context.Background(), req, nil)
	require.NoError(t, err)

	got := strings.Split(strings.TrimRight(string(res.Artifact), "\n"), "\n")
	assert.Equal(t, []string{
		"-D", "tamanho_cubo=55",
		"-D", `formato="quadrado"`,
		"-D", "com_tampa=true",
	}, got)
}

func TestCompileEngineLoadFailureIsRetryable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-engine")
	o := newTestOrchestrator(t, missing, deps.Host{})

	_, err := o.Compile(context.Background(), types.CompileRequest{Source: "a = 1;\n"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.KindEngineLoad, errors.KindOf(err))
	assert.True(t, errors.IsRetryable(err))
	assert.False(t, o.factory.Loaded())
}

func TestCompileArtifactCacheHit(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "runs")
	engine := writeFakeEngine(t, `
echo run >> `+marker+`
cp "$1" "$3"
`)
	o := newTestOrchestrator(t, engine, deps.Host{})
	req := types.CompileRequest{Source: "a = 1;\n"}

	first, err := o.Compile(context.Background(), req, nil)
	require.NoError(t, err)

	second, err := o.Compile(context.Background(), req, nil)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Artifact, second.Artifact)

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	runs := strings.Count(string(data), "run")
	assert.Equal(t, 1, runs)

	m := o.Metrics()
	assert.Equal(t, int64(2), m.TotalCompiles)
	assert.Equal(t, int64(1), m.CacheHits)
	assert.Equal(t, int64(2), m.SuccessfulCompiles)
}

func TestCompileResolvesAndStagesLibrary(t *testing.T) {
	var fileHits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"path": "gears.scad", "type": "file"},
		})
	})
	mux.HandleFunc("/raw/", func(w http.ResponseWriter, r *http.Request) {
		fileHits.Add(1)
		w.Write([]byte("module gear() {}"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	host := deps.Host{
		ListingURL: server.URL + "/list",
		FileURL:    server.URL + "/raw/{path}",
	}

	// The engine only produces the artifact when the staged library file is
	// visible under its library search path.
	engine := writeFakeEngine(t, `
if [ -f "$OPENSCADPATH/MCAD/gears.scad" ]; then
	cp "$1" "$3"
fi
`)
	o := newTestOrchestrator(t, engine, host)

	source := "include <MCAD/gears.scad>\nz = 1;\n"
	res, err := o.Compile(context.Background(), types.CompileRequest{Source: source}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Artifact)

	// A second build referencing the same library refetches nothing.
	hitsBefore := fileHits.Load()
	_, err = o.Compile(context.Background(), types.CompileRequest{Source: source + "// v2\n"}, nil)
	require.NoError(t, err)
	assert.Equal(t, hitsBefore, fileHits.Load())
}

func TestCompileListingFailureAbortsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	engine := writeFakeEngine(t, `cp "$1" "$3"`)
	o := newTestOrchestrator(t, engine, deps.Host{
		ListingURL: server.URL + "/list",
		FileURL:    server.URL + "/raw/{path}",
	})

	_, err := o.Compile(context.Background(),
		types.CompileRequest{Source: "use <MCAD/motors.scad>\n"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.KindDependencyListing, errors.KindOf(err))

	// A source without the library reference still compiles.
	res, err := o.Compile(context.Background(), types.CompileRequest{Source: "a = 1;\n"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Artifact)
}

func TestReferencesLibrary(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{"include", "include <MCAD/gears.scad>\n", true},
		{"use", "use <MCAD/motors.scad>\n", true},
		{"bare namespace", "include <MCAD>\n", true},
		{"other library", "include <BOSL/shapes.scad>\n", false},
		{"prefix but different library", "include <MCADX/x.scad>\n", false},
		{"no directive", "mcad = 1; // [MCAD]\n", false},
		{"indented", "  use <MCAD/gears.scad>\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, referencesLibrary(tt.source, "MCAD"))
		})
	}
}
