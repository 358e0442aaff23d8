// Package deps resolves and caches the external geometry libraries a source
// file may reference.
//
// A library is resolved at most once per process: the first request fetches
// the library's flat file listing, then the file bodies in bounded-size
// concurrent batches, and the resulting file set is cached read-only for the
// process lifetime. Concurrent resolvers of the same library await the same
// in-flight population instead of racing the network.
package deps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/scadform/scadform/internal/errors"
	"github.com/scadform/scadform/internal/logging"
)

// sourceExt is the library's own source format; listing entries with any
// other extension are not relevant to a build and are never fetched.
const sourceExt = ".scad"

// defaultBatchSize caps simultaneous file-body connections per batch.
const defaultBatchSize = 8

// Library identifies one external library version.
type Library struct {
	Name    string
	Version string
}

// Key returns the cache key for the library.
func (l Library) Key() string {
	return l.Name + "@" + l.Version
}

// FileSet maps a library-relative path to file content. A FileSet returned
// by the cache is shared and must be treated as read-only.
type FileSet map[string][]byte

// Host describes the listing and fetch endpoints of a library host. URLs are
// templates with {name}, {version} and {path} placeholders.
type Host struct {
	ListingURL string
	FileURL    string
}

// listingEntry is one element of the listing endpoint's JSON response.
type listingEntry struct {
	Path string `json:"path"`
	Type string `json:"type,omitempty"`
}

// Progress is notified after each fetched batch with the number of files
// retrieved so far and the total number selected from the listing.
type Progress func(done, total int)

// Cache resolves libraries against a host and retains every resolved file
// set for the process lifetime. Safe for concurrent use.
type Cache struct {
	host      Host
	client    *http.Client
	batchSize int
	logger    logging.Logger

	group singleflight.Group
	mu    sync.RWMutex
	sets  map[string]FileSet
}

// NewCache creates a dependency cache against the given host.
func NewCache(host Host, client *http.Client, logger logging.Logger) *Cache {
	if client == nil {
		client = http.DefaultClient
	}
	return &Cache{
		host:      host,
		client:    client,
		batchSize: defaultBatchSize,
		logger:    logger.WithComponent("deps"),
		sets:      make(map[string]FileSet),
	}
}

// Resolve returns the library's complete relevant file set, fetching it over
// the network only on the first call for a given library version. A failed
// listing fetch aborts resolution; a failed individual file fetch only drops
// that file from the result set. The cached set is returned even when it was
// resolved incomplete.
func (c *Cache) Resolve(ctx context.Context, lib Library, progress Progress) (FileSet, error) {
	c.mu.RLock()
	if set, ok := c.sets[lib.Key()]; ok {
		c.mu.RUnlock()
		return set, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(lib.Key(), func() (interface{}, error) {
		// Re-check under the flight: a previous population may have landed
		// between the fast path and Do.
		c.mu.RLock()
		set, ok := c.sets[lib.Key()]
		c.mu.RUnlock()
		if ok {
			return set, nil
		}

		set, err := c.populate(ctx, lib, progress)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.sets[lib.Key()] = set
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(FileSet), nil
}

// Resolved reports whether the library is already populated, without any
// network activity.
func (c *Cache) Resolved(lib Library) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sets[lib.Key()]
	return ok
}

func (c *Cache) populate(ctx context.Context, lib Library, progress Progress) (FileSet, error) {
	paths, err := c.fetchListing(ctx, lib)
	if err != nil {
		return nil, errors.Wrap(errors.KindDependencyListing, err,
			fmt.Sprintf("listing %s", lib.Key()))
	}

	set := make(FileSet, len(paths))
	total := len(paths)
	done := 0

	for start := 0; start < total; start += c.batchSize {
		end := start + c.batchSize
		if end > total {
			end = total
		}
		batch := paths[start:end]

		var wg sync.WaitGroup
		var setMu sync.Mutex
		for _, path := range batch {
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				body, err := c.fetchFile(ctx, lib, path)
				if err != nil {
					// Tolerated: the file is dropped from the result set.
					// If the build needed it, that surfaces later as a
					// separate missing-artifact failure.
					c.logger.Warn(ctx, err, "dependency file skipped",
						"library", lib.Key(), "path", path)
					return
				}
				setMu.Lock()
				set[path] = body
				setMu.Unlock()
			}(path)
		}
		wg.Wait()

		done += len(batch)
		if progress != nil {
			progress(done, total)
		}
	}

	c.logger.Info(ctx, "dependency resolved",
		"library", lib.Key(), "files", len(set), "listed", total)
	return set, nil
}

func (c *Cache) fetchListing(ctx context.Context, lib Library) ([]string, error) {
	body, err := c.get(ctx, expand(c.host.ListingURL, lib, ""))
	if err != nil {
		return nil, err
	}

	var entries []listingEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type != "" && e.Type != "file" {
			continue
		}
		if !strings.HasSuffix(e.Path, sourceExt) {
			continue
		}
		paths = append(paths, e.Path)
	}
	return paths, nil
}

func (c *Cache) fetchFile(ctx context.Context, lib Library, path string) ([]byte, error) {
	return c.get(ctx, expand(c.host.FileURL, lib, path))
}

func (c *Cache) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// expand substitutes {name}, {version} and {path} placeholders.
func expand(tmpl string, lib Library, path string) string {
	r := strings.NewReplacer(
		"{name}", lib.Name,
		"{version}", lib.Version,
		"{path}", path,
	)
	return r.Replace(tmpl)
}
