package tree

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/benz9527/xcontainer/lib/infra"
)

const (
	RBTreeStatsName = "xcontainer/rbtree"
)

type rbFixupCase uint8

const (
	fixupInsertA rbFixupCase = iota
	fixupInsertB
	fixupInsertC
	fixupRemove2
	fixupRemove3
	fixupRemove4
	fixupRemove5
	fixupRemove6
)

var rbFixupCaseAttrs = [...]attribute.Set{
	fixupInsertA: attribute.NewSet(attribute.String("rbtree.fixup.op", "insert"), attribute.String("rbtree.fixup.case", "A")),
	fixupInsertB: attribute.NewSet(attribute.String("rbtree.fixup.op", "insert"), attribute.String("rbtree.fixup.case", "B")),
	fixupInsertC: attribute.NewSet(attribute.String("rbtree.fixup.op", "insert"), attribute.String("rbtree.fixup.case", "C")),
	fixupRemove2: attribute.NewSet(attribute.String("rbtree.fixup.op", "remove"), attribute.String("rbtree.fixup.case", "2")),
	fixupRemove3: attribute.NewSet(attribute.String("rbtree.fixup.op", "remove"), attribute.String("rbtree.fixup.case", "3")),
	fixupRemove4: attribute.NewSet(attribute.String("rbtree.fixup.op", "remove"), attribute.String("rbtree.fixup.case", "4")),
	fixupRemove5: attribute.NewSet(attribute.String("rbtree.fixup.op", "remove"), attribute.String("rbtree.fixup.case", "5")),
	fixupRemove6: attribute.NewSet(attribute.String("rbtree.fixup.op", "remove"), attribute.String("rbtree.fixup.case", "6")),
}

var (
	rbInsertedAttrs = attribute.NewSet(attribute.String("rbtree.insert.result", "inserted"))
	rbPresentAttrs  = attribute.NewSet(attribute.String("rbtree.insert.result", "present"))
	rbAssignedAttrs = attribute.NewSet(attribute.String("rbtree.insert.result", "assigned"))
	rbRemovedAttrs  = attribute.NewSet(attribute.String("rbtree.remove.result", "removed"))
	rbAbsentAttrs   = attribute.NewSet(attribute.String("rbtree.remove.result", "absent"))
	rbHitAttrs      = attribute.NewSet(attribute.String("rbtree.search.result", "hit"))
	rbMissAttrs     = attribute.NewSet(attribute.String("rbtree.search.result", "miss"))
	rbLeftAttrs     = attribute.NewSet(attribute.String("rbtree.rotation.direction", "left"))
	rbRightAttrs    = attribute.NewSet(attribute.String("rbtree.rotation.direction", "right"))
)

// rbTreeStats is shared by clones of one tree. Every method is a no-op
// on a nil receiver, so a tree without stats pays a nil check only.
type rbTreeStats struct {
	size      metric.Int64UpDownCounter
	inserts   metric.Int64Counter
	removes   metric.Int64Counter
	searches  metric.Int64Counter
	rotations metric.Int64Counter
	fixups    metric.Int64Counter
}

func (stats *rbTreeStats) RecordSize(delta int64) {
	if stats == nil || delta == 0 {
		return
	}
	stats.size.Add(context.Background(), delta)
}

func (stats *rbTreeStats) IncreaseInsert(inserted, assigned bool) {
	if stats == nil {
		return
	}
	as := rbPresentAttrs
	if inserted {
		as = rbInsertedAttrs
	} else if assigned {
		as = rbAssignedAttrs
	}
	stats.inserts.Add(context.Background(), 1, metric.WithAttributeSet(as))
}

func (stats *rbTreeStats) IncreaseRemove(removed bool) {
	if stats == nil {
		return
	}
	as := rbAbsentAttrs
	if removed {
		as = rbRemovedAttrs
	}
	stats.removes.Add(context.Background(), 1, metric.WithAttributeSet(as))
}

func (stats *rbTreeStats) IncreaseSearch(hit bool) {
	if stats == nil {
		return
	}
	as := rbMissAttrs
	if hit {
		as = rbHitAttrs
	}
	stats.searches.Add(context.Background(), 1, metric.WithAttributeSet(as))
}

func (stats *rbTreeStats) IncreaseRotation(dir RBDirection) {
	if stats == nil {
		return
	}
	as := rbLeftAttrs
	if dir == Right {
		as = rbRightAttrs
	}
	stats.rotations.Add(context.Background(), 1, metric.WithAttributeSet(as))
}

func (stats *rbTreeStats) IncreaseFixup(c rbFixupCase) {
	if stats == nil {
		return
	}
	stats.fixups.Add(context.Background(), 1, metric.WithAttributeSet(rbFixupCaseAttrs[c]))
}

// WithRBTreeStats exports the tree operations as otel metrics under the
// meter "xcontainer/rbtree/<name>". The global meter provider is used
// unless provider is given.
func WithRBTreeStats[K infra.OrderedKey, V any](name string, provider ...metric.MeterProvider) RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.isStatsEnabled = true
		tree.statsName = name
		if len(provider) > 0 && provider[0] != nil {
			tree.statsProvider = provider[0]
		}
	}
}

func newRBTreeStats(name string, provider metric.MeterProvider) *rbTreeStats {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meterName := RBTreeStatsName
	if name != "" {
		meterName = fmt.Sprintf("%s/%s", RBTreeStatsName, name)
	}
	meter := provider.Meter(meterName)
	return &rbTreeStats{
		size: lo.Must[metric.Int64UpDownCounter](meter.
			Int64UpDownCounter(
				"rbtree.size",
				metric.WithDescription("The number of elements in the rbtree."),
			),
		),
		inserts: lo.Must[metric.Int64Counter](meter.
			Int64Counter(
				"rbtree.insert.count",
				metric.WithDescription("The number of insert calls by result."),
			),
		),
		removes: lo.Must[metric.Int64Counter](meter.
			Int64Counter(
				"rbtree.remove.count",
				metric.WithDescription("The number of remove calls by result."),
			),
		),
		searches: lo.Must[metric.Int64Counter](meter.
			Int64Counter(
				"rbtree.search.count",
				metric.WithDescription("The number of key searches by result."),
			),
		),
		rotations: lo.Must[metric.Int64Counter](meter.
			Int64Counter(
				"rbtree.rotation.count",
				metric.WithDescription("The number of rotations by direction."),
			),
		),
		fixups: lo.Must[metric.Int64Counter](meter.
			Int64Counter(
				"rbtree.fixup.count",
				metric.WithDescription("The number of rebalance cases applied."),
			),
		),
	}
}
