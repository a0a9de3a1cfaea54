// Package cache keeps parsed syntax trees keyed by a digest of the exact
// bytes parsed.
//
// Identical content always maps to the same Document while its entry is
// live, whichever file or buffer it came from. Entries expire a fixed TTL
// after their last access and are swept lazily on every Get; nothing runs
// in the background.
//
// Parsing happens outside the lock. Two concurrent misses for the same
// digest therefore both parse, and the later insert replaces the earlier
// one; the first caller keeps a tree that is equal in content but not the
// cached instance. This is accepted: the map still holds one entry per
// digest and the duplicate work is bounded by the number of racing callers.
package cache

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jward/perlnav/internal/metrics"
	"github.com/jward/perlnav/internal/syntax"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("perlnav.cache")

// DefaultTTL is how long an entry survives without being accessed.
const DefaultTTL = time.Minute

// Document is an immutable parse result owned by the cache.
type Document struct {
	Tree       *syntax.Tree
	Digest     string
	Created    time.Time
	SingleLine bool
}

// Source is the content to parse: a file on disk or in-memory text such as
// an unsaved editor buffer.
type Source struct {
	Path string
	Text []byte
	// InMemory selects Text over reading Path.
	InMemory bool
}

// File returns a Source that reads path when parsed.
func File(path string) Source { return Source{Path: path} }

// Text returns a Source for in-memory content. path is informational.
func Text(path string, text []byte) Source {
	return Source{Path: path, Text: text, InMemory: true}
}

// Options tune a single Get.
type Options struct {
	// SingleLine parses only the 0-indexed Line of the content. An out of
	// range line parses as empty text.
	SingleLine bool
	Line       int
}

type entry struct {
	doc        *Document
	lastAccess time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
	parse   func([]byte) (*syntax.Tree, error)
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock replaces time.Now, letting tests move time past the TTL.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithParser replaces syntax.Parse.
func WithParser(parse func([]byte) (*syntax.Tree, error)) Option {
	return func(c *Cache) { c.parse = parse }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		ttl:     DefaultTTL,
		now:     time.Now,
		parse:   syntax.Parse,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Digest returns the hex SHA-256 of content.
func Digest(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// Get returns the Document for src, parsing it on a miss. A parse failure
// is returned as a *syntax.ParseError and is not cached.
func (c *Cache) Get(src Source, opts Options) (*Document, error) {
	content := src.Text
	if !src.InMemory {
		b, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("cache: reading %s: %w", src.Path, err)
		}
		content = b
	}
	if opts.SingleLine {
		content = extractLine(content, opts.Line)
	}
	digest := Digest(content)

	if doc := c.lookup(digest); doc != nil {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		log.Debugf("hit %s (%s)", src.Path, digest[:12])
		return doc, nil
	}

	tree, err := c.parse(content)
	if err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.CacheRequests.WithLabelValues("miss").Inc()
	log.Debugf("miss %s (%s)", src.Path, digest[:12])

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	doc := &Document{Tree: tree, Digest: digest, Created: now, SingleLine: opts.SingleLine}
	c.entries[digest] = &entry{doc: doc, lastAccess: now}
	c.sweepLocked(now)
	metrics.CacheEntries.Set(float64(len(c.entries)))
	return doc, nil
}

func (c *Cache) lookup(digest string) *Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.sweepLocked(now)
	e, ok := c.entries[digest]
	if !ok {
		return nil
	}
	e.lastAccess = now
	return e.doc
}

// sweepLocked drops every entry whose last access is older than the TTL.
func (c *Cache) sweepLocked(now time.Time) {
	for d, e := range c.entries {
		if now.Sub(e.lastAccess) > c.ttl {
			delete(c.entries, d)
			metrics.CacheEvictions.Inc()
		}
	}
}

// Len returns the number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func extractLine(content []byte, line int) []byte {
	if line < 0 {
		return nil
	}
	lines := strings.SplitAfter(string(content), "\n")
	if line >= len(lines) {
		return nil
	}
	return []byte(strings.TrimRight(lines[line], "\r\n"))
}
