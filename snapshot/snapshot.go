package snapshot

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/hybridmem"
)

// Object is a live tracked allocation at the time the snapshot was taken.
type Object struct {
	ID            uint64    `json:"id"`
	Addr          uint64    `json:"addr"`
	Size          int       `json:"size"`
	Label         string    `json:"label"`
	File          string    `json:"file,omitempty"`
	Line          int       `json:"line,omitempty"`
	Created       time.Time `json:"created"`
	Refs          int       `json:"refs"`
	HasDestructor bool      `json:"has_destructor,omitempty"`
}

// Arena describes the arena that was active when the snapshot was taken.
type Arena struct {
	Name        string `json:"name"`
	Capacity    uint64 `json:"capacity"`
	Offset      uint64 `json:"offset"`
	HighWater   uint64 `json:"high_water"`
	BytesUsed   uint64 `json:"bytes_used"`
	BytesWasted uint64 `json:"bytes_wasted"`
	TotalAllocs uint64 `json:"total_allocs"`
	Exhaustions uint64 `json:"exhaustions"`
}

// Counters are the manager statistics. Durations are in nanoseconds.
type Counters struct {
	Objects                 int           `json:"objects"`
	LiveBytes               uint64        `json:"live_bytes"`
	PeakBytes               uint64        `json:"peak_bytes"`
	Allocations             uint64        `json:"allocations"`
	Frees                   uint64        `json:"frees"`
	FreedBytes              uint64        `json:"freed_bytes"`
	Collections             uint64        `json:"collections"`
	TotalCollectTime        time.Duration `json:"total_collect_time_ns"`
	AvgCollectTime          time.Duration `json:"avg_collect_time_ns"`
	LastCollectFreedObjects int           `json:"last_collect_freed_objects"`
	LastCollectFreedBytes   uint64        `json:"last_collect_freed_bytes"`
	ArenaAllocs             uint64        `json:"arena_allocs"`
	ArenaFallbacks          uint64        `json:"arena_fallbacks"`
	UntrackedOps            uint64        `json:"untracked_ops"`
	Arenas                  int           `json:"arenas"`
}

// Snapshot is the machine-readable form of a hybridmem.Report.
type Snapshot struct {
	// Seq is assigned by the Exporter. Zero means not exported yet.
	Seq      uint64    `json:"seq"`
	Taken    time.Time `json:"taken"`
	Verbose  bool      `json:"verbose"`
	Counters Counters  `json:"counters"`
	Arena    *Arena    `json:"arena,omitempty"`
	// Objects is only populated for verbose reports.
	Objects []Object `json:"objects,omitempty"`
}

// FromReport converts a report.
func FromReport(r hybridmem.Report) *Snapshot {
	st := r.Stats
	s := &Snapshot{
		Taken:   r.Taken,
		Verbose: r.Verbose,
		Counters: Counters{
			Objects:                 st.Objects,
			LiveBytes:               st.LiveBytes,
			PeakBytes:               st.PeakBytes,
			Allocations:             st.Allocations,
			Frees:                   st.Frees,
			FreedBytes:              st.FreedBytes,
			Collections:             st.Collections,
			TotalCollectTime:        st.TotalCollectTime,
			AvgCollectTime:          st.AvgCollectTime,
			LastCollectFreedObjects: st.LastCollectFreedObjects,
			LastCollectFreedBytes:   st.LastCollectFreedBytes,
			ArenaAllocs:             st.ArenaAllocs,
			ArenaFallbacks:          st.ArenaFallbacks,
			UntrackedOps:            st.UntrackedOps,
			Arenas:                  st.Arenas,
		},
	}

	if a := r.Arena; a != nil {
		s.Arena = &Arena{
			Name:        a.Name,
			Capacity:    a.Stats.Capacity,
			Offset:      a.Stats.Offset,
			HighWater:   a.Stats.HighWater,
			BytesUsed:   a.Stats.BytesUsed,
			BytesWasted: a.Stats.BytesWasted,
			TotalAllocs: a.Stats.TotalAllocs,
			Exhaustions: a.Stats.Exhaustions,
		}
	}

	if len(r.Objects) > 0 {
		s.Objects = make([]Object, len(r.Objects))
		for i, o := range r.Objects {
			s.Objects[i] = Object{
				ID:            o.ID,
				Addr:          uint64(o.Addr),
				Size:          o.Size,
				Label:         o.Label,
				File:          o.Site.File,
				Line:          o.Site.Line,
				Created:       o.Created,
				Refs:          o.Refs,
				HasDestructor: o.HasDestructor,
			}
		}
	}

	return s
}

// Take snapshots m with the live object list included.
func Take(m *hybridmem.Manager) *Snapshot {
	return FromReport(m.Report(true))
}

// IDs returns the set of live object ids.
func (s *Snapshot) IDs() *roaring64.Bitmap {
	bm := roaring64.New()
	for i := range s.Objects {
		bm.Add(s.Objects[i].ID)
	}
	return bm
}

// Object returns the live object with the given id.
func (s *Snapshot) Object(id uint64) (Object, bool) {
	for i := range s.Objects {
		if s.Objects[i].ID == id {
			return s.Objects[i], true
		}
	}
	return Object{}, false
}
