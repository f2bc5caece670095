package soak

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/benz9527/xcontainer/lib/id"
	"github.com/benz9527/xcontainer/lib/kv"
	"github.com/benz9527/xcontainer/lib/set"
	"github.com/benz9527/xcontainer/lib/tree"
)

// workload drives one container and mirrors every operation into a
// plain map model. Each method reports the first divergence.
type workload interface {
	// insert adds key. With overwrite the map assigns, the multiset is
	// unaffected and the set ignores it.
	insert(key uint64, overwrite bool) error
	// remove deletes one element, or every element equal to key with all.
	remove(key uint64, all bool) error
	lookup(key uint64) error
	// scan walks up to steps elements from the lower bound of key.
	scan(key uint64, steps int) error
	// check validates the tree and compares the full in-order contents.
	check() error
	size() int64
}

func mismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrModelMismatch, fmt.Sprintf(format, args...))
}

func sortedKeys[V any](model map[uint64]V) []uint64 {
	keys := lo.Keys(model)
	slices.Sort(keys)
	return keys
}

func expandCounts(model map[uint64]int64) []uint64 {
	return lo.FlatMap(sortedKeys(model), func(key uint64, _ int) []uint64 {
		return lo.Times(int(model[key]), func(int) uint64 { return key })
	})
}

// window returns up to steps keys of sorted starting at the first key >= key.
func window(sorted []uint64, key uint64, steps int) []uint64 {
	i, _ := slices.BinarySearch(sorted, key)
	return sorted[i:min(i+steps, len(sorted))]
}

func collect[V any](it tree.RBIterator[uint64, V], steps int) []uint64 {
	res := make([]uint64, 0, steps)
	for ; !it.IsEnd() && len(res) < steps; it = it.Next() {
		res = append(res, it.Key())
	}
	return res
}

func compareKeys(op string, got, want []uint64) error {
	if !slices.Equal(got, want) {
		return mismatch("%s keys got %v, want %v", op, lo.Subset(got, 0, 8), lo.Subset(want, 0, 8))
	}
	return nil
}

var _ workload = (*mapWorkload)(nil)

type mapWorkload struct {
	m     *kv.TreeMap[uint64, uint64]
	model map[uint64]uint64
	ids   id.Generator
}

func newMapWorkload(opts ...tree.RBTreeOpt[uint64, uint64]) (*mapWorkload, error) {
	ids, err := id.MonotonicNonZeroID()
	if err != nil {
		return nil, err
	}
	return &mapWorkload{
		m:     kv.NewTreeMap[uint64, uint64](opts...),
		model: make(map[uint64]uint64),
		ids:   ids,
	}, nil
}

func (w *mapWorkload) insert(key uint64, overwrite bool) error {
	val := w.ids.Number()
	prev, present := w.model[key]
	var (
		it       tree.RBIterator[uint64, uint64]
		inserted bool
	)
	if overwrite {
		it, inserted = w.m.InsertOrAssign(key, val)
		w.model[key] = val
	} else {
		it, inserted = w.m.Insert(key, val)
		if !present {
			w.model[key] = val
		}
	}
	if inserted == present {
		return mismatch("map insert %d reported inserted=%v, key present=%v", key, inserted, present)
	}
	if it.Key() != key || it.Val() != w.model[key] {
		return mismatch("map insert %d iterator at %d=%d, want %d=%d (prev %d)",
			key, it.Key(), it.Val(), key, w.model[key], prev)
	}
	return nil
}

func (w *mapWorkload) remove(key uint64, _ bool) error {
	want, present := w.model[key]
	got, ok := w.m.Remove(key)
	delete(w.model, key)
	if ok != present || got != want {
		return mismatch("map remove %d got (%d, %v), want (%d, %v)", key, got, ok, want, present)
	}
	return nil
}

func (w *mapWorkload) lookup(key uint64) error {
	want, present := w.model[key]
	got, ok := w.m.Get(key)
	if ok != present || got != want {
		return mismatch("map get %d got (%d, %v), want (%d, %v)", key, got, ok, want, present)
	}
	if w.m.Contains(key) != present {
		return mismatch("map contains %d, want %v", key, present)
	}
	return nil
}

func (w *mapWorkload) scan(key uint64, steps int) error {
	return compareKeys("map scan", collect(w.m.LowerBound(key), steps), window(sortedKeys(w.model), key, steps))
}

func (w *mapWorkload) check() error {
	if err := tree.Validate(w.m.Tree()); err != nil {
		return err
	}
	if w.m.Len() != int64(len(w.model)) {
		return mismatch("map len %d, want %d", w.m.Len(), len(w.model))
	}
	keys := make([]uint64, 0, len(w.model))
	for k, v := range w.m.All() {
		if v != w.model[k] {
			return mismatch("map value of %d is %d, want %d", k, v, w.model[k])
		}
		keys = append(keys, k)
	}
	return compareKeys("map in-order", keys, sortedKeys(w.model))
}

func (w *mapWorkload) size() int64 {
	return w.m.Len()
}

var _ workload = (*setWorkload)(nil)

type setWorkload struct {
	s     *set.Set[uint64]
	model map[uint64]struct{}
}

func newSetWorkload(opts ...tree.RBTreeOpt[uint64, struct{}]) *setWorkload {
	return &setWorkload{
		s:     set.NewSet[uint64](opts...),
		model: make(map[uint64]struct{}),
	}
}

func (w *setWorkload) insert(key uint64, _ bool) error {
	_, present := w.model[key]
	it, inserted := w.s.Insert(key)
	w.model[key] = struct{}{}
	if inserted == present {
		return mismatch("set insert %d reported inserted=%v, key present=%v", key, inserted, present)
	}
	if it.Key() != key {
		return mismatch("set insert %d iterator at %d", key, it.Key())
	}
	return nil
}

func (w *setWorkload) remove(key uint64, _ bool) error {
	_, present := w.model[key]
	ok := w.s.Remove(key)
	delete(w.model, key)
	if ok != present {
		return mismatch("set remove %d got %v, want %v", key, ok, present)
	}
	return nil
}

func (w *setWorkload) lookup(key uint64) error {
	_, present := w.model[key]
	if w.s.Contains(key) != present {
		return mismatch("set contains %d, want %v", key, present)
	}
	if want := int64(lo.Ternary(present, 1, 0)); w.s.Count(key) != want {
		return mismatch("set count %d is %d, want %d", key, w.s.Count(key), want)
	}
	return nil
}

func (w *setWorkload) scan(key uint64, steps int) error {
	return compareKeys("set scan", collect(w.s.LowerBound(key), steps), window(sortedKeys(w.model), key, steps))
}

func (w *setWorkload) check() error {
	if err := tree.Validate(w.s.Tree()); err != nil {
		return err
	}
	if w.s.Len() != int64(len(w.model)) {
		return mismatch("set len %d, want %d", w.s.Len(), len(w.model))
	}
	return compareKeys("set in-order", slices.Collect(w.s.All()), sortedKeys(w.model))
}

func (w *setWorkload) size() int64 {
	return w.s.Len()
}

var _ workload = (*multiSetWorkload)(nil)

type multiSetWorkload struct {
	s     *set.MultiSet[uint64]
	model map[uint64]int64
	total int64
}

func newMultiSetWorkload(opts ...tree.RBTreeOpt[uint64, struct{}]) *multiSetWorkload {
	return &multiSetWorkload{
		s:     set.NewMultiSet[uint64](opts...),
		model: make(map[uint64]int64),
	}
}

func (w *multiSetWorkload) insert(key uint64, _ bool) error {
	it, inserted := w.s.Insert(key)
	w.model[key]++
	w.total++
	if !inserted {
		return mismatch("multiset insert %d rejected", key)
	}
	// Equal keys are kept in insertion order, the new one is the last.
	if next := it.Next(); !next.IsEnd() && next.Key() == key {
		return mismatch("multiset insert %d is not after its equals", key)
	}
	return nil
}

func (w *multiSetWorkload) remove(key uint64, all bool) error {
	want := w.model[key]
	if all {
		got := w.s.RemoveAll(key)
		delete(w.model, key)
		w.total -= want
		if got != want {
			return mismatch("multiset remove all %d got %d, want %d", key, got, want)
		}
		return nil
	}
	ok := w.s.Remove(key)
	if want > 0 {
		w.total--
		if want == 1 {
			delete(w.model, key)
		} else {
			w.model[key] = want - 1
		}
	}
	if ok != (want > 0) {
		return mismatch("multiset remove %d got %v, want %v", key, ok, want > 0)
	}
	return nil
}

func (w *multiSetWorkload) lookup(key uint64) error {
	want := w.model[key]
	if got := w.s.Count(key); got != want {
		return mismatch("multiset count %d is %d, want %d", key, got, want)
	}
	first, last := w.s.EqualRange(key)
	var n int64
	for it := first; !it.Equal(last); it = it.Next() {
		n++
	}
	if n != want {
		return mismatch("multiset equal range %d spans %d, want %d", key, n, want)
	}
	return nil
}

func (w *multiSetWorkload) scan(key uint64, steps int) error {
	return compareKeys("multiset scan", collect(w.s.LowerBound(key), steps), window(expandCounts(w.model), key, steps))
}

func (w *multiSetWorkload) check() error {
	if err := tree.Validate(w.s.Tree()); err != nil {
		return err
	}
	if w.s.Len() != w.total {
		return mismatch("multiset len %d, want %d", w.s.Len(), w.total)
	}
	return compareKeys("multiset in-order", slices.Collect(w.s.All()), expandCounts(w.model))
}

func (w *multiSetWorkload) size() int64 {
	return w.s.Len()
}
