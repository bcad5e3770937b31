package snapshot

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Diff compares the live object sets of two snapshots. Both snapshots must
// be verbose; counters are compared regardless.
type Diff struct {
	// Added holds ids live in the newer snapshot only.
	Added *roaring64.Bitmap
	// Freed holds ids live in the older snapshot only.
	Freed *roaring64.Bitmap
	// Surviving holds ids live in both.
	Surviving *roaring64.Bitmap
	// RefsChanged holds surviving ids whose reference count changed.
	RefsChanged *roaring64.Bitmap

	// LiveBytesDelta is newer minus older live bytes.
	LiveBytesDelta int64
	// AddedBytes is the total size of the added objects.
	AddedBytes uint64
	// FreedBytes is the total size of the freed objects.
	FreedBytes uint64
}

// Compare returns the difference from older to newer.
func Compare(older, newer *Snapshot) Diff {
	before := older.IDs()
	after := newer.IDs()

	d := Diff{
		Added:          roaring64.AndNot(after, before),
		Freed:          roaring64.AndNot(before, after),
		Surviving:      roaring64.And(before, after),
		RefsChanged:    roaring64.New(),
		LiveBytesDelta: int64(newer.Counters.LiveBytes) - int64(older.Counters.LiveBytes),
	}

	oldRefs := make(map[uint64]Object, len(older.Objects))
	for _, o := range older.Objects {
		oldRefs[o.ID] = o
	}

	for _, o := range newer.Objects {
		prev, ok := oldRefs[o.ID]
		switch {
		case !ok:
			d.AddedBytes += uint64(o.Size)
		case prev.Refs != o.Refs:
			d.RefsChanged.Add(o.ID)
		}
	}

	freed := d.Freed
	for _, o := range older.Objects {
		if freed.Contains(o.ID) {
			d.FreedBytes += uint64(o.Size)
		}
	}

	return d
}

// Empty reports whether nothing changed in the object sets.
func (d Diff) Empty() bool {
	return d.Added.IsEmpty() && d.Freed.IsEmpty() && d.RefsChanged.IsEmpty()
}

func (d Diff) String() string {
	return fmt.Sprintf("+%d objects (%d bytes), -%d objects (%d bytes), %d surviving, %d refcount changes, live bytes %+d",
		d.Added.GetCardinality(), d.AddedBytes,
		d.Freed.GetCardinality(), d.FreedBytes,
		d.Surviving.GetCardinality(),
		d.RefsChanged.GetCardinality(),
		d.LiveBytesDelta,
	)
}
