package cache

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/locale"
	"github.com/alucardeht/fstspell/internal/logger"
	"github.com/alucardeht/fstspell/internal/resources"
)

var log = logger.ForComponent("cache")

// Resolver maps a requested tag to the resource that serves it.
type Resolver func(locale.Tag) (resources.Entry, error)

// Opener loads the resource at path.
type Opener[T io.Closer] func(path string) (T, error)

type item[T io.Closer] struct {
	value    T
	entry    resources.Entry
	loadedAt time.Time
}

// Cache holds one opened resource per file. Tags resolving to the same
// file share it. Concurrent first use of a file shares a single open;
// failed opens are handed to every waiter and not stored, so the next
// call tries again.
type Cache[T io.Closer] struct {
	name    string
	resolve Resolver
	open    Opener[T]

	group singleflight.Group

	mu     sync.RWMutex
	items  map[string]*item[T]
	tags   map[locale.Tag]string
	closed bool
}

func New[T io.Closer](name string, resolve Resolver, open Opener[T]) *Cache[T] {
	return &Cache[T]{
		name:    name,
		resolve: resolve,
		open:    open,
		items:   make(map[string]*item[T]),
		tags:    make(map[locale.Tag]string),
	}
}

// Get returns the resource for tag, opening it on first use. Entries whose
// file changed since they were opened are reopened.
func (c *Cache[T]) Get(ctx context.Context, tag locale.Tag) (T, error) {
	var zero T

	entry, err := c.resolve(tag)
	if err != nil {
		return zero, err
	}

	if v, ok := c.fresh(entry); ok {
		return v, nil
	}

	ch := c.group.DoChan(entry.Path, func() (any, error) {
		if v, ok := c.fresh(entry); ok {
			return v, nil
		}
		return c.load(entry)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v := res.Val.(T)
		c.mu.Lock()
		orphan := c.bind(entry.Tag, entry.Path)
		c.mu.Unlock()
		c.closeOrphan(orphan)
		return v, nil
	}
}

func (c *Cache[T]) fresh(entry resources.Entry) (T, bool) {
	c.mu.RLock()
	it, ok := c.items[entry.Path]
	bound := c.tags[entry.Tag] == entry.Path
	c.mu.RUnlock()
	if !ok || !it.entry.SameFile(entry) {
		var zero T
		return zero, false
	}
	if !bound {
		c.mu.Lock()
		var orphan *item[T]
		if c.items[entry.Path] == it {
			orphan = c.bind(entry.Tag, entry.Path)
		}
		c.mu.Unlock()
		c.closeOrphan(orphan)
	}
	return it.value, true
}

// bind points tag at path. It returns the item tag used to point at when
// no other tag references it any more. Callers hold mu.
func (c *Cache[T]) bind(tag locale.Tag, path string) *item[T] {
	if _, ok := c.items[path]; !ok {
		return nil
	}
	prev, ok := c.tags[tag]
	c.tags[tag] = path
	if !ok || prev == path || c.referenced(prev) {
		return nil
	}
	it := c.items[prev]
	delete(c.items, prev)
	c.group.Forget(prev)
	return it
}

func (c *Cache[T]) referenced(path string) bool {
	for _, p := range c.tags {
		if p == path {
			return true
		}
	}
	return false
}

func (c *Cache[T]) closeOrphan(it *item[T]) {
	if it == nil {
		return
	}
	log.Info("resource released", "cache", c.name, "path", it.entry.Path)
	if err := it.value.Close(); err != nil {
		log.Warn("failed to close released resource", "cache", c.name, "path", it.entry.Path, "error", err)
	}
}

func (c *Cache[T]) load(entry resources.Entry) (T, error) {
	var zero T

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return zero, errors.E(errors.UseAfterInvalidate, "load", entry.Path, c.name+" cache is closed")
	}

	start := time.Now()
	v, err := c.open(entry.Path)
	if err != nil {
		log.Warn("failed to open resource", "cache", c.name, "tag", entry.Tag, "path", entry.Path, "error", err)
		return zero, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		v.Close()
		return zero, errors.E(errors.UseAfterInvalidate, "load", entry.Path, c.name+" cache is closed")
	}
	old := c.items[entry.Path]
	c.items[entry.Path] = &item[T]{value: v, entry: entry, loadedAt: time.Now()}
	orphan := c.bind(entry.Tag, entry.Path)
	c.mu.Unlock()

	if old != nil {
		if err := old.value.Close(); err != nil {
			log.Warn("failed to close replaced resource", "cache", c.name, "path", entry.Path, "error", err)
		}
	}
	c.closeOrphan(orphan)

	log.Info("resource loaded", "cache", c.name, "tag", entry.Tag, "path", entry.Path,
		"fallback", entry.Fallback, "elapsed", time.Since(start))
	return v, nil
}

// Invalidate unbinds tags. A file no tag refers to any more is closed, and
// handles still using it fail with UseAfterInvalidate from then on.
func (c *Cache[T]) Invalidate(tags ...locale.Tag) error {
	var dropped []*item[T]

	c.mu.Lock()
	for _, t := range tags {
		path, ok := c.tags[t]
		if !ok {
			continue
		}
		delete(c.tags, t)
		if c.referenced(path) {
			continue
		}
		if it, ok := c.items[path]; ok {
			dropped = append(dropped, it)
			delete(c.items, path)
		}
		c.group.Forget(path)
	}
	c.mu.Unlock()

	return c.closeAll(dropped)
}

// InvalidatePath drops the resource opened from path, whichever tags
// share it.
func (c *Cache[T]) InvalidatePath(path string) error {
	var dropped []*item[T]

	c.mu.Lock()
	for t, p := range c.tags {
		if p == path {
			delete(c.tags, t)
		}
	}
	if it, ok := c.items[path]; ok {
		dropped = append(dropped, it)
		delete(c.items, path)
	}
	c.group.Forget(path)
	c.mu.Unlock()

	return c.closeAll(dropped)
}

func (c *Cache[T]) closeAll(items []*item[T]) error {
	var errs []error
	for _, it := range items {
		log.Info("resource invalidated", "cache", c.name, "path", it.entry.Path)
		if err := it.value.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Merge(errs...)
}

// Loaded lists the tags currently held, sorted.
func (c *Cache[T]) Loaded() []locale.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]locale.Tag, 0, len(c.tags))
	for t := range c.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close closes every entry. Later calls to Get fail with UseAfterInvalidate.
func (c *Cache[T]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	items := c.items
	c.items = make(map[string]*item[T])
	c.tags = make(map[locale.Tag]string)
	c.mu.Unlock()

	var errs []error
	for _, it := range items {
		if err := it.value.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Merge(errs...)
}
