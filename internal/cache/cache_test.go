package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/fst"
	"github.com/alucardeht/fstspell/internal/locale"
	"github.com/alucardeht/fstspell/internal/resources"
	"github.com/alucardeht/fstspell/internal/speller"
)

type fakeResource struct {
	path   string
	closed atomic.Bool
}

func (f *fakeResource) Close() error {
	f.closed.Store(true)
	return nil
}

func staticResolver(entries map[locale.Tag]resources.Entry) Resolver {
	return func(t locale.Tag) (resources.Entry, error) {
		for _, c := range t.Candidates() {
			if e, ok := entries[c]; ok {
				return e, nil
			}
		}
		return resources.Entry{}, errors.E(errors.ResourceNotFound, "lookup", "", "no resource for "+string(t))
	}
}

func TestConcurrentFirstUseOpensOnce(t *testing.T) {
	var opens atomic.Int32
	resolve := staticResolver(map[locale.Tag]resources.Entry{
		"se": {Tag: "se", Path: "/res/se.fsta"},
	})
	c := New("test", resolve, func(path string) (*fakeResource, error) {
		opens.Add(1)
		time.Sleep(50 * time.Millisecond)
		return &fakeResource{path: path}, nil
	})
	defer c.Close()

	var wg sync.WaitGroup
	results := make([]*fakeResource, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tag := locale.Tag("se")
			if i%2 == 0 {
				tag = "se-no"
			}
			r, err := c.Get(context.Background(), tag)
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	if n := opens.Load(); n != 1 {
		t.Fatalf("expected one open, got %d", n)
	}
	for _, r := range results {
		if r != results[0] {
			t.Fatal("expected every caller to share the opened resource")
		}
	}
}

func TestFailedOpenIsNotCached(t *testing.T) {
	var opens atomic.Int32
	resolve := staticResolver(map[locale.Tag]resources.Entry{
		"se": {Tag: "se", Path: "/res/se.fsta"},
	})
	c := New("test", resolve, func(path string) (*fakeResource, error) {
		if opens.Add(1) == 1 {
			return nil, errors.E(errors.CorruptArchive, "open", path, "bad magic")
		}
		return &fakeResource{path: path}, nil
	})
	defer c.Close()

	if _, err := c.Get(context.Background(), "se"); !errors.IsCorruptArchive(err) {
		t.Fatalf("expected CorruptArchive, got %v", err)
	}
	if len(c.Loaded()) != 0 {
		t.Errorf("expected nothing cached, got %v", c.Loaded())
	}
	if _, err := c.Get(context.Background(), "se"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if n := opens.Load(); n != 2 {
		t.Errorf("expected two opens, got %d", n)
	}
}

func TestUnknownTag(t *testing.T) {
	c := New("test", staticResolver(nil), func(path string) (*fakeResource, error) {
		t.Fatal("opener should not run")
		return nil, nil
	})
	if _, err := c.Get(context.Background(), "fi"); !errors.IsResourceNotFound(err) {
		t.Errorf("expected ResourceNotFound, got %v", err)
	}
}

func TestInvalidateAndReload(t *testing.T) {
	entries := map[locale.Tag]resources.Entry{
		"se": {Tag: "se", Path: "/res/se.fsta", Size: 1},
	}
	var mu sync.Mutex
	resolve := func(t locale.Tag) (resources.Entry, error) {
		mu.Lock()
		defer mu.Unlock()
		return staticResolver(entries)(t)
	}
	c := New("test", resolve, func(path string) (*fakeResource, error) {
		return &fakeResource{path: path}, nil
	})
	defer c.Close()

	first, _ := c.Get(context.Background(), "se")
	if err := c.Invalidate("se"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if !first.closed.Load() {
		t.Error("expected invalidated resource to be closed")
	}
	second, _ := c.Get(context.Background(), "se")
	if second == first {
		t.Error("expected a fresh resource after invalidation")
	}

	mu.Lock()
	entries["se"] = resources.Entry{Tag: "se", Path: "/res/se.fsta", Size: 2}
	mu.Unlock()

	third, _ := c.Get(context.Background(), "se")
	if third == second {
		t.Error("expected a changed file to be reopened")
	}
	if !second.closed.Load() {
		t.Error("expected the replaced resource to be closed")
	}

	if err := c.InvalidatePath("/res/se.fsta"); err != nil {
		t.Fatalf("InvalidatePath failed: %v", err)
	}
	if len(c.Loaded()) != 0 {
		t.Errorf("expected empty cache, got %v", c.Loaded())
	}
}

func TestCloseRejectsLaterGets(t *testing.T) {
	resolve := staticResolver(map[locale.Tag]resources.Entry{
		"se": {Tag: "se", Path: "/res/se.fsta"},
	})
	c := New("test", resolve, func(path string) (*fakeResource, error) {
		return &fakeResource{path: path}, nil
	})

	r, _ := c.Get(context.Background(), "se")
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !r.closed.Load() {
		t.Error("expected Close to close held resources")
	}
	if _, err := c.Get(context.Background(), "se"); !errors.IsUseAfterInvalidate(err) {
		t.Errorf("expected UseAfterInvalidate, got %v", err)
	}
}

func TestGetHonorsContext(t *testing.T) {
	release := make(chan struct{})
	resolve := staticResolver(map[locale.Tag]resources.Entry{
		"se": {Tag: "se", Path: "/res/se.fsta"},
	})
	c := New("test", resolve, func(path string) (*fakeResource, error) {
		<-release
		return &fakeResource{path: path}, nil
	})
	defer c.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Get(ctx, "se"); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestSpellerArchivesParseOnce(t *testing.T) {
	dir := t.TempDir()
	b := fst.NewBuilder(fst.Metadata{Locale: "se"})
	for _, w := range []string{"guolle", "biila", "giella"} {
		b.Add(w, 0)
	}
	data, err := b.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "se.fsta")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	reg := resources.NewRegistry(dir)
	if _, _, err := reg.Rescan(); err != nil {
		t.Fatal(err)
	}

	var opens atomic.Int32
	c := New("spellers", reg.Lookup, func(path string) (speller.Resource, error) {
		opens.Add(1)
		return speller.Open(path)
	})
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Get(context.Background(), "se-no")
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			an, err := res.Analyzer()
			if err != nil {
				t.Errorf("Analyzer failed: %v", err)
				return
			}
			ok, err := an.IsCorrect("giella")
			if err != nil || !ok {
				t.Errorf("expected giella to be correct, got %v %v", ok, err)
			}
		}()
	}
	wg.Wait()

	if n := opens.Load(); n != 1 {
		t.Errorf("expected one parse, got %d", n)
	}
	if fmt.Sprint(c.Loaded()) != "[se]" {
		t.Errorf("expected [se] loaded, got %v", c.Loaded())
	}
}

func TestTagsSharingAFileOpenItOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "se_NO.fsta")
	if err := os.WriteFile(path, []byte("placeholder"), 0644); err != nil {
		t.Fatal(err)
	}
	reg := resources.NewRegistry(dir)
	if _, _, err := reg.Rescan(); err != nil {
		t.Fatal(err)
	}

	var opens atomic.Int32
	c := New("spellers", reg.Lookup, func(p string) (*fakeResource, error) {
		opens.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &fakeResource{path: p}, nil
	})
	defer c.Close()

	var wg sync.WaitGroup
	results := make([]*fakeResource, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tag := locale.Tag("se")
			if i%2 == 0 {
				tag = "se-no"
			}
			r, err := c.Get(context.Background(), tag)
			if err != nil {
				t.Errorf("Get(%s) failed: %v", tag, err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	if n := opens.Load(); n != 1 {
		t.Fatalf("expected one open of %s, got %d", path, n)
	}
	if results[0] != results[1] {
		t.Fatal("expected se and se-no to share the opened resource")
	}
	if fmt.Sprint(c.Loaded()) != "[se se-no]" {
		t.Errorf("expected [se se-no] loaded, got %v", c.Loaded())
	}

	if err := c.Invalidate("se"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if results[0].closed.Load() {
		t.Error("expected the file kept open while se-no still uses it")
	}
	if err := c.Invalidate("se-no"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if !results[0].closed.Load() {
		t.Error("expected the file closed once no tag uses it")
	}
}
