package deps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/scadform/scadform/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	server *httptest.Server

	listing      []listingEntry
	listingFails bool
	failFiles    map[string]bool

	listingHits atomic.Int64
	fileHits    atomic.Int64
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	h := &fakeHost{failFiles: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/list/", func(w http.ResponseWriter, r *http.Request) {
		h.listingHits.Add(1)
		if h.listingFails {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(h.listing)
	})
	mux.HandleFunc("/raw/", func(w http.ResponseWriter, r *http.Request) {
		h.fileHits.Add(1)
		path := strings.TrimPrefix(r.URL.Path, "/raw/")
		if h.failFiles[path] {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Write([]byte("// " + path))
	})

	h.server = httptest.NewServer(mux)
	t.Cleanup(h.server.Close)
	return h
}

func (h *fakeHost) host() Host {
	return Host{
		ListingURL: h.server.URL + "/list/{name}/{version}",
		FileURL:    h.server.URL + "/raw/{path}",
	}
}

func TestResolveFetchesAndCaches(t *testing.T) {
	h := newFakeHost(t)
	h.listing = []listingEntry{
		{Path: "gears.scad", Type: "file"},
		{Path: "bearings.scad", Type: "file"},
		{Path: "README", Type: "file"},
		{Path: "sub", Type: "dir"},
	}

	cache := NewCache(h.host(), nil, logging.NewNop())
	lib := Library{Name: "MCAD", Version: "v1"}

	set, err := cache.Resolve(context.Background(), lib, nil)
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.Equal(t, []byte("// gears.scad"), set["gears.scad"])
	assert.NotContains(t, set, "README")
	assert.True(t, cache.Resolved(lib))

	// Second resolution of the same library+version performs zero further
	// network activity.
	listBefore, fileBefore := h.listingHits.Load(), h.fileHits.Load()
	again, err := cache.Resolve(context.Background(), lib, nil)
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, listBefore, h.listingHits.Load())
	assert.Equal(t, fileBefore, h.fileHits.Load())
}

func TestResolveListingFailureAborts(t *testing.T) {
	h := newFakeHost(t)
	h.listingFails = true

	cache := NewCache(h.host(), nil, logging.NewNop())
	_, err := cache.Resolve(context.Background(), Library{Name: "MCAD", Version: "v1"}, nil)
	require.Error(t, err)
	assert.False(t, cache.Resolved(Library{Name: "MCAD", Version: "v1"}))

	// A later attempt retries the listing rather than caching the failure.
	h.listingFails = false
	h.listing = []listingEntry{{Path: "gears.scad", Type: "file"}}
	set, err := cache.Resolve(context.Background(), Library{Name: "MCAD", Version: "v1"}, nil)
	require.NoError(t, err)
	assert.Len(t, set, 1)
}

func TestResolveToleratesFileFailures(t *testing.T) {
	h := newFakeHost(t)
	h.listing = []listingEntry{
		{Path: "ok.scad", Type: "file"},
		{Path: "broken.scad", Type: "file"},
	}
	h.failFiles["broken.scad"] = true

	cache := NewCache(h.host(), nil, logging.NewNop())
	lib := Library{Name: "MCAD", Version: "v1"}

	set, err := cache.Resolve(context.Background(), lib, nil)
	require.NoError(t, err)
	assert.Len(t, set, 1)
	assert.Contains(t, set, "ok.scad")

	// The incomplete set is cached and reused without refetching.
	fileBefore := h.fileHits.Load()
	again, err := cache.Resolve(context.Background(), lib, nil)
	require.NoError(t, err)
	assert.Len(t, again, 1)
	assert.Equal(t, fileBefore, h.fileHits.Load())
}

func TestResolveProgressPerBatch(t *testing.T) {
	h := newFakeHost(t)
	for i := 0; i < 20; i++ {
		h.listing = append(h.listing, listingEntry{Path: "f" + string(rune('a'+i)) + ".scad", Type: "file"})
	}

	cache := NewCache(h.host(), nil, logging.NewNop())
	var mu sync.Mutex
	var notices [][2]int
	_, err := cache.Resolve(context.Background(), Library{Name: "MCAD", Version: "v1"},
		func(done, total int) {
			mu.Lock()
			notices = append(notices, [2]int{done, total})
			mu.Unlock()
		})
	require.NoError(t, err)

	// 20 files at batch size 8: notifications after 8, 16 and 20.
	require.Len(t, notices, 3)
	assert.Equal(t, [2]int{8, 20}, notices[0])
	assert.Equal(t, [2]int{16, 20}, notices[1])
	assert.Equal(t, [2]int{20, 20}, notices[2])
}

func TestConcurrentResolveSharesOnePopulation(t *testing.T) {
	h := newFakeHost(t)
	h.listing = []listingEntry{{Path: "gears.scad", Type: "file"}}

	cache := NewCache(h.host(), nil, logging.NewNop())
	lib := Library{Name: "MCAD", Version: "v1"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := cache.Resolve(context.Background(), lib, nil)
			assert.NoError(t, err)
			assert.Len(t, set, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), h.listingHits.Load())
	assert.Equal(t, int64(1), h.fileHits.Load())
}

func TestStagePreservesStructure(t *testing.T) {
	root := t.TempDir()
	files := FileSet{
		"gears.scad":           []byte("module gear() {}"),
		"shapes/triangles.scad": []byte("module tri() {}"),
	}

	require.NoError(t, Stage(root, Library{Name: "MCAD", Version: "v1"}, files))

	got, err := os.ReadFile(filepath.Join(root, "MCAD", "gears.scad"))
	require.NoError(t, err)
	assert.Equal(t, "module gear() {}", string(got))

	got, err = os.ReadFile(filepath.Join(root, "MCAD", "shapes", "triangles.scad"))
	require.NoError(t, err)
	assert.Equal(t, "module tri() {}", string(got))
}

func TestStageRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	err := Stage(root, Library{Name: "MCAD"}, FileSet{"../evil.scad": []byte("x")})
	require.Error(t, err)
}
