package kv

import (
	"errors"
	"io"
	"iter"

	"github.com/benz9527/xcontainer/lib/infra"
	"github.com/benz9527/xcontainer/lib/tree"
)

var (
	ErrKeyOutOfRange = errors.New("[kv] key out of range")
)

type KeyValue[K infra.OrderedKey, V any] struct {
	Key K
	Val V
}

// OrderedMap is a unique key map iterated in key order.
type OrderedMap[K infra.OrderedKey, V any] interface {
	Len() int64
	IsEmpty() bool
	MaxLen() int64
	// At returns ErrKeyOutOfRange if key is absent.
	At(key K) (V, error)
	// Access returns the value of key, storing the zero value first
	// if key is absent.
	Access(key K) V
	Get(key K) (V, bool)
	LoadOrStore(key K, val V) (actual V, loaded bool)
	Insert(key K, val V) (tree.RBIterator[K, V], bool)
	InsertOrAssign(key K, val V) (tree.RBIterator[K, V], bool)
	InsertMany(items ...KeyValue[K, V]) []tree.RBInsertResult[K, V]
	Remove(key K) (V, bool)
	Erase(it tree.RBIterator[K, V]) tree.RBIterator[K, V]
	Contains(key K) bool
	Find(key K) tree.RBIterator[K, V]
	LowerBound(key K) tree.RBIterator[K, V]
	UpperBound(key K) tree.RBIterator[K, V]
	Begin() tree.RBIterator[K, V]
	End() tree.RBIterator[K, V]
	All() iter.Seq2[K, V]
	Backward() iter.Seq2[K, V]
	Keys() iter.Seq[K]
	Values() iter.Seq[V]
	Clear()
}

type SafeStoreKeyFilterFunc[K infra.OrderedKey] func(key K) bool

func defaultAllKeysFilter[K infra.OrderedKey](key K) bool {
	return true
}

type Closable interface {
	io.Closer
}

// ThreadSafeStorer guards an ordered map with a lock. Listings come out
// in key order.
type ThreadSafeStorer[K infra.OrderedKey, V any] interface {
	Len() int64
	Purge() error
	AddOrUpdate(key K, obj V)
	Replace(items map[K]V)
	Delete(key K) (V, bool)
	Get(key K) (item V, exists bool)
	ListKeys(filters ...SafeStoreKeyFilterFunc[K]) []K
	ListValues(keys ...K) (items []V)
}
