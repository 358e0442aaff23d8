package build

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scadform/scadform/internal/params"
	"github.com/scadform/scadform/internal/types"
)

// defaultCacheEntries bounds the artifact cache. Mesh artifacts run from a
// few kilobytes to a few megabytes, so a few hundred entries keeps memory
// within reason.
const defaultCacheEntries = 256

// ArtifactCache caches compiled artifacts keyed by a content hash over the
// effective source text and the serialized override list. A hit skips the
// engine run entirely.
type ArtifactCache struct {
	entries *lru.Cache[string, []byte]
}

// NewArtifactCache creates an artifact cache with the given entry bound,
// or the default when size is not positive.
func NewArtifactCache(size int) *ArtifactCache {
	if size <= 0 {
		size = defaultCacheEntries
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		// lru.New only fails for non-positive sizes, which the guard above
		// rules out.
		panic(err)
	}
	return &ArtifactCache{entries: entries}
}

// Key derives the cache key for a compile request.
func (c *ArtifactCache) Key(source string, overrides []types.Override) string {
	h := sha256.New()
	h.Write([]byte(source))
	for _, o := range overrides {
		h.Write([]byte{0})
		h.Write([]byte(o.Name))
		h.Write([]byte{'='})
		h.Write([]byte(params.FormatValue(o.Value, o.Type)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a copy of the cached artifact for the key, if present. Copies
// keep cached bytes immutable while still transferring ownership of the
// returned slice to the caller.
func (c *ArtifactCache) Get(key string) ([]byte, bool) {
	cached, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(cached))
	copy(out, cached)
	return out, true
}

// Set stores an artifact under the key.
func (c *ArtifactCache) Set(key string, artifact []byte) {
	stored := make([]byte, len(artifact))
	copy(stored, artifact)
	c.entries.Add(key, stored)
}

// Len returns the number of cached artifacts.
func (c *ArtifactCache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached artifact.
func (c *ArtifactCache) Purge() {
	c.entries.Purge()
}
