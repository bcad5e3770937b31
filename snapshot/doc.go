// Package snapshot persists manager reports in a machine-readable form.
//
// A Snapshot is built from a hybridmem.Report (FromReport, Take), encoded with
// a codec from package codec and optionally compressed with LZ4 or Zstandard:
//
//	data, err := snapshot.Encode(snapshot.Take(m), snapshot.EncodeOptions{
//	    Compression: snapshot.CompressionZstd,
//	})
//
// The Exporter numbers snapshots and writes them to blob stores as
// "snapshots/00000001.snap", "snapshots/00000002.snap", ... followed by a
// LATEST pointer:
//
//	exp := snapshot.NewExporter(local, snapshot.WithMirrors(s3store))
//	name, err := exp.ExportManager(ctx, m)
//
//	latest, err := snapshot.LoadLatest(ctx, local)
//
// Compare reports which objects appeared, disappeared or changed their
// reference count between two verbose snapshots. The id sets are roaring
// bitmaps, so diffs over millions of objects stay cheap.
package snapshot
