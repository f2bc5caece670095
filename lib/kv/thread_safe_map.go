package kv

import (
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/benz9527/xcontainer/lib/infra"
	"github.com/benz9527/xcontainer/lib/tree"
)

type threadSafeMap[K infra.OrderedKey, V any] struct {
	lock  sync.RWMutex
	items *TreeMap[K, V]
	opts  []tree.RBTreeOpt[K, V]
}

func (t *threadSafeMap[K, V]) Len() int64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.items.Len()
}

func (t *threadSafeMap[K, V]) AddOrUpdate(key K, obj V) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.items.InsertOrAssign(key, obj)
}

func (t *threadSafeMap[K, V]) Replace(items map[K]V) {
	m := NewTreeMap[K, V](t.opts...)
	for k, v := range items {
		m.Insert(k, v)
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	t.items.Swap(m)
}

func (t *threadSafeMap[K, V]) Delete(key K) (V, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.items.Remove(key)
}

func (t *threadSafeMap[K, V]) Get(key K) (item V, exists bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.items.Get(key)
}

func (t *threadSafeMap[K, V]) ListKeys(filters ...SafeStoreKeyFilterFunc[K]) []K {
	realFilters := make([]SafeStoreKeyFilterFunc[K], 0, len(filters))
	for _, filter := range filters {
		if filter != nil {
			realFilters = append(realFilters, filter)
		}
	}
	if len(realFilters) == 0 {
		realFilters = append(realFilters, defaultAllKeysFilter[K])
	}

	t.lock.RLock()
	defer t.lock.RUnlock()

	keys := make([]K, 0, t.items.Len())
	for key := range t.items.Keys() {
		for _, filter := range realFilters {
			if filter(key) {
				keys = append(keys, key)
				break
			}
		}
	}
	return keys
}

// ListValues returns the values of keys in key order, or all values
// when no key is given. Absent keys are skipped.
func (t *threadSafeMap[K, V]) ListValues(keys ...K) (items []V) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if len(keys) == 0 {
		values := make([]V, 0, t.items.Len())
		for v := range t.items.Values() {
			values = append(values, v)
		}
		return values
	}

	wanted := NewTreeMap[K, struct{}]()
	for _, key := range keys {
		wanted.Insert(key, struct{}{})
	}
	values := make([]V, 0, wanted.Len())
	for key := range wanted.Keys() {
		if v, ok := t.items.Get(key); ok {
			values = append(values, v)
		}
	}
	return values
}

// Purge empties the store and closes every io.Closer value.
func (t *threadSafeMap[K, V]) Purge() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	var merr error
	for _, item := range t.items.All() {
		if closer, ok := any(item).(io.Closer); ok {
			merr = multierr.Append(merr, closer.Close())
		}
	}
	t.items.Clear()
	return merr
}

func NewThreadSafeMap[K infra.OrderedKey, V any](opts ...tree.RBTreeOpt[K, V]) ThreadSafeStorer[K, V] {
	return &threadSafeMap[K, V]{
		items: NewTreeMap[K, V](opts...),
		opts:  opts,
	}
}
