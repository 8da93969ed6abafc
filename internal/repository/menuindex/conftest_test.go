package menuindex

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/kailas-cloud/menudex/internal/db"
)

// fakeStore is an in-memory stand-in for the Redis store.
type fakeStore struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	kv      map[string][]byte
	indexes map[string]*db.IndexDefinition

	lastKNN *db.KNNQuery
	knnFn   func(q *db.KNNQuery) (*db.SearchResult, error)

	hsetErr   error
	setErr    error
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes:  make(map[string]map[string]string),
		kv:      make(map[string][]byte),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

func (f *fakeStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hsetErr != nil {
		return f.hsetErr
	}
	for _, it := range items {
		f.hashes[it.Key] = it.Fields
	}
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.hashes, k)
		delete(f.kv, k)
	}
	return nil
}

func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.kv[key] = value
	return nil
}

func (f *fakeStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	f.indexes[def.Name] = def
	return nil
}

func (f *fakeStore) DropIndex(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.indexes[name]; !ok {
		return db.ErrIndexNotFound
	}
	delete(f.indexes, name)
	return nil
}

func (f *fakeStore) IndexExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.indexes[name]
	return ok, nil
}

// SearchKNN returns every hash under the index prefix that matches the filter.
// Distances are not computed; tests that need them set knnFn.
func (f *fakeStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKNN = q
	if f.knnFn != nil {
		return f.knnFn(q)
	}
	def, ok := f.indexes[q.IndexName]
	if !ok {
		return nil, db.ErrIndexNotFound
	}

	var keys []string
	for k := range f.hashes {
		if strings.HasPrefix(k, def.Prefix) && q.Filters.Matches(f.hashes[k]) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > q.K {
		keys = keys[:q.K]
	}

	res := &db.SearchResult{Total: len(keys)}
	for _, k := range keys {
		res.Entries = append(res.Entries, db.SearchEntry{Key: k, Fields: f.hashes[k]})
	}
	return res, nil
}

func (f *fakeStore) SearchCount(_ context.Context, index, _ string) (int, error) {
	f.mu.Lock()
	def, ok := f.indexes[index]
	f.mu.Unlock()
	if !ok {
		return 0, db.ErrIndexNotFound
	}
	return f.countWithPrefix(def.Prefix), nil
}

func (f *fakeStore) countWithPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.hashes {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

var errBoom = errors.New("boom")
