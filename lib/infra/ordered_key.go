package infra

type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned is a constraint that permits any unsigned integer type.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

type Integer interface {
	Signed | Unsigned
}

type Float interface {
	~float32 | ~float64
}

// OrderedKey
// byte => ~uint8
// Complex numbers are excluded, they have no total order.
type OrderedKey interface {
	Integer | Float | ~string
}

// OrderedKeyComparator
// Assume i is the new key.
//  1. i == j (return 0)
//  2. i > j (return 1), turn to right part.
//  3. i < j (return -1), turn to left part.
type OrderedKeyComparator[K OrderedKey] func(i, j K) int64

// AscOrderedKeyComparator orders keys by the natural Go ordering.
// NaN is treated as equal to everything, same as the builtin operators
// never reporting less or greater for it.
func AscOrderedKeyComparator[K OrderedKey](i, j K) int64 {
	if i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}

// DescOrderedKeyComparator reverses AscOrderedKeyComparator.
func DescOrderedKeyComparator[K OrderedKey](i, j K) int64 {
	return -AscOrderedKeyComparator[K](i, j)
}

// ReverseComparator wraps cmp to produce the opposite ordering.
func ReverseComparator[K OrderedKey](cmp OrderedKeyComparator[K]) OrderedKeyComparator[K] {
	if cmp == nil {
		return DescOrderedKeyComparator[K]
	}
	return func(i, j K) int64 {
		return cmp(j, i)
	}
}
