package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/hybridmem"
	"github.com/hupe1980/hybridmem/blobstore"
	"github.com/hupe1980/hybridmem/codec"
	"github.com/hupe1980/hybridmem/internal/resource"
	"golang.org/x/sync/errgroup"
)

const (
	// Dir is the prefix snapshots are stored under.
	Dir = "snapshots/"
	// LatestName is the pointer blob holding the name of the newest snapshot.
	LatestName = "LATEST"

	ext = ".snap"
)

// ErrNoSnapshot is returned by LoadLatest when nothing was exported yet.
var ErrNoSnapshot = errors.New("snapshot: no snapshot exported")

// Name returns the blob name of snapshot seq.
func Name(seq uint64) string {
	return fmt.Sprintf("%s%08d%s", Dir, seq, ext)
}

// ParseName returns the sequence number encoded in a snapshot blob name.
func ParseName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, Dir) || !strings.HasSuffix(name, ext) {
		return 0, false
	}
	seq, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(name, Dir), ext), 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// Exporter writes encoded snapshots to one primary store and any number of
// mirrors. A snapshot counts as exported once every store holds it; only
// then is LATEST moved.
type Exporter struct {
	primary blobstore.BlobStore
	mirrors []blobstore.BlobStore

	codec       codec.Codec
	compression Compression
	rc          *resource.Controller
	logger      *hybridmem.Logger
	retain      int

	mu  sync.Mutex
	seq uint64
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithMirrors adds stores that receive a copy of every snapshot.
func WithMirrors(stores ...blobstore.BlobStore) ExporterOption {
	return func(e *Exporter) { e.mirrors = append(e.mirrors, stores...) }
}

// WithCodec sets the codec. Default: codec.Default.
func WithCodec(c codec.Codec) ExporterOption {
	return func(e *Exporter) { e.codec = c }
}

// WithCompression sets the payload compression. Default: CompressionZstd.
func WithCompression(c Compression) ExporterOption {
	return func(e *Exporter) { e.compression = c }
}

// WithResourceController limits export bandwidth to the controller's IO
// rate.
func WithResourceController(rc *resource.Controller) ExporterOption {
	return func(e *Exporter) { e.rc = rc }
}

// WithLogger sets the logger. Default: hybridmem.NoopLogger().
func WithLogger(l *hybridmem.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = l }
}

// WithRetain keeps only the newest n snapshots in every store after each
// export. Zero keeps everything.
func WithRetain(n int) ExporterOption {
	return func(e *Exporter) { e.retain = n }
}

// NewExporter creates an Exporter writing to primary.
func NewExporter(primary blobstore.BlobStore, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		primary:     primary,
		codec:       codec.Default,
		compression: CompressionZstd,
		logger:      hybridmem.NoopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exporter) stores() []blobstore.BlobStore {
	return append([]blobstore.BlobStore{e.primary}, e.mirrors...)
}

// ExportManager takes a verbose snapshot of m and exports it.
func (e *Exporter) ExportManager(ctx context.Context, m *hybridmem.Manager) (string, error) {
	return e.Export(ctx, Take(m))
}

// Export writes s under the next sequence number to every store and then
// moves LATEST. s.Seq is only set once every store points at the new blob.
// A sequence number whose blob reached every store is never handed out
// again, even when moving LATEST fails part way. It returns the snapshot
// blob name.
func (e *Exporter) Export(ctx context.Context, s *Snapshot) (name string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	stores := e.stores()
	size := 0
	defer func() {
		e.logger.LogSnapshotExport(ctx, name, len(stores), size, time.Since(start), err)
	}()

	if e.seq == 0 {
		last, err := lastSeq(ctx, e.primary)
		if err != nil {
			return "", fmt.Errorf("snapshot: scan %s: %w", Dir, err)
		}
		e.seq = last
	}

	out := *s
	out.Seq = e.seq + 1
	name = Name(out.Seq)

	data, err := Encode(&out, EncodeOptions{Codec: e.codec, Compression: e.compression})
	if err != nil {
		return name, err
	}
	size = len(data)

	g, gctx := errgroup.WithContext(ctx)
	for _, store := range stores {
		g.Go(func() error {
			return e.write(gctx, store, name, data)
		})
	}
	if err := g.Wait(); err != nil {
		// Drop partial copies so the sequence number is reused.
		for _, store := range stores {
			_ = store.Delete(context.WithoutCancel(ctx), name)
		}
		return name, err
	}

	// Some LATEST pointers may move below; the name must not be rewritten.
	e.seq = out.Seq

	g, gctx = errgroup.WithContext(ctx)
	for _, store := range stores {
		g.Go(func() error {
			if err := store.Put(gctx, LatestName, []byte(name)); err != nil {
				return fmt.Errorf("snapshot: update %s: %w", LatestName, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return name, err
	}

	s.Seq = out.Seq

	if e.retain > 0 {
		for _, store := range stores {
			if _, err := Prune(ctx, store, e.retain); err != nil {
				return name, err
			}
		}
	}

	return name, nil
}

func (e *Exporter) write(ctx context.Context, store blobstore.BlobStore, name string, data []byte) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", name, err)
	}

	if _, err := io.Copy(resource.NewRateLimitedWriter(ctx, w, e.rc), bytes.NewReader(data)); err != nil {
		if a, ok := w.(interface{ Abort() error }); ok {
			_ = a.Abort()
		} else {
			_ = w.Close()
		}
		return fmt.Errorf("snapshot: write %s: %w", name, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("snapshot: close %s: %w", name, err)
	}
	return nil
}

// List returns the sequence numbers of the snapshots in store, ascending.
func List(ctx context.Context, store blobstore.BlobStore) ([]uint64, error) {
	names, err := store.List(ctx, Dir)
	if err != nil {
		return nil, err
	}

	seqs := make([]uint64, 0, len(names))
	for _, n := range names {
		if seq, ok := ParseName(n); ok {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

func lastSeq(ctx context.Context, store blobstore.BlobStore) (uint64, error) {
	seqs, err := List(ctx, store)
	if err != nil || len(seqs) == 0 {
		return 0, err
	}
	return seqs[len(seqs)-1], nil
}

// Load reads and decodes the snapshot stored under name.
func Load(ctx context.Context, store blobstore.BlobStore, name string) (*Snapshot, error) {
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// LoadLatest follows LATEST and decodes the snapshot it names.
func LoadLatest(ctx context.Context, store blobstore.BlobStore) (*Snapshot, error) {
	ptr, err := blobstore.ReadAll(ctx, store, LatestName)
	if err != nil {
		if blobstore.IsNotFound(err) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	return Load(ctx, store, strings.TrimSpace(string(ptr)))
}

// Prune deletes all but the newest keep snapshots and returns how many were
// removed. The snapshot LATEST points to is never deleted.
func Prune(ctx context.Context, store blobstore.BlobStore, keep int) (int, error) {
	seqs, err := List(ctx, store)
	if err != nil {
		return 0, err
	}
	if keep < 1 {
		keep = 1
	}
	if len(seqs) <= keep {
		return 0, nil
	}

	var latest string
	if ptr, err := blobstore.ReadAll(ctx, store, LatestName); err == nil {
		latest = strings.TrimSpace(string(ptr))
	}

	removed := 0
	for _, seq := range seqs[:len(seqs)-keep] {
		name := Name(seq)
		if name == latest {
			continue
		}
		if err := store.Delete(ctx, name); err != nil {
			return removed, fmt.Errorf("snapshot: delete %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}
