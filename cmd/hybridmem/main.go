// Command hybridmem drives a manager with a synthetic workload, prints the
// allocator report and optionally exports a snapshot.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/hupe1980/hybridmem"
	"github.com/hupe1980/hybridmem/internal/pflagx"
	"github.com/hupe1980/hybridmem/promobs"
	"github.com/hupe1980/hybridmem/snapshot"
)

var (
	EnvPrefix = "HYBRIDMEM_"

	Ops         = pflag.IntP("ops", "n", 10000, "number of workload operations")
	Seed        = pflag.Int64("seed", 42, "workload seed")
	MaxSize     = pflagx.BytesP("max-size", "s", 4096, "largest allocation request")
	ArenaSize   = pflagx.BytesP("arena-size", "a", 0, "arena capacity selected during the workload (0 disables the arena)")
	OffHeap     = pflag.Bool("off-heap", false, "back the arena and tracked blocks with anonymous mappings")
	MemoryLimit = pflagx.BytesP("memory-limit", "m", 0, "block memory budget (0 for unlimited)")
	AutoCollect = pflagx.BytesP("auto-collect", "", 0, "collect when live bytes exceed this threshold (0 disables)")
	Background  = pflag.Bool("background", false, "run automatic collections in the background")
	Verbose     = pflag.BoolP("verbose", "v", false, "list live objects in the report")
	ExportDir   = pflag.StringP("export-dir", "o", "", "export a snapshot to this directory")
	S3Bucket    = pflag.String("s3-bucket", "", "also export to this S3 bucket")
	S3Prefix    = pflag.String("s3-prefix", "hybridmem/", "S3 key prefix")
	S3Region    = pflag.String("s3-region", "", "S3 region (default from the AWS config)")
	DDBTable    = pflag.String("ddb-table", "", "commit the S3 LATEST pointer through this DynamoDB table")
	MinioAddr   = pflag.String("minio-endpoint", "", "also export to this MinIO endpoint")
	MinioBucket = pflag.String("minio-bucket", "hybridmem", "MinIO bucket")
	MinioKey    = pflag.String("minio-access-key", "minioadmin", "MinIO access key")
	MinioSecret = pflag.String("minio-secret-key", "minioadmin", "MinIO secret key")
	MinioSecure = pflag.Bool("minio-secure", false, "use TLS for MinIO")
	Compression = pflag.String("compression", "zstd", "snapshot compression (none, lz4, zstd)")
	ExportRate  = pflagx.BytesP("export-rate", "", 0, "snapshot export bandwidth per second (0 for unlimited)")
	Retain      = pflag.Int("retain", 0, "snapshots to keep per store (0 keeps all)")
	MetricsAddr = pflag.String("metrics-addr", "", "serve prometheus metrics on this address and keep running")
	LogLevel    = pflagx.LevelP("log-level", "L", slog.LevelInfo, "log level")
	LogJSON     = pflag.Bool("log-json", false, "use json logs")
	Help        = pflag.BoolP("help", "h", false, "show this help text")
)

func main() {
	if err := pflagx.ParseEnv(EnvPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	pflag.Parse()

	if *Help || pflag.NArg() != 0 {
		fmt.Printf("usage: %s [options]\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
		if *Help {
			return
		}
		os.Exit(2)
	}

	var handler slog.Handler
	if *LogJSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: LogLevel})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: LogLevel})
	}
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, hybridmem.NewLogger(handler)); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *hybridmem.Logger) error {
	opts := []hybridmem.Option{
		hybridmem.WithLogger(logger),
		hybridmem.WithWarnRate(time.Second),
	}
	if *OffHeap {
		opts = append(opts,
			hybridmem.WithHeapSource(hybridmem.OffHeapSource()),
			hybridmem.WithArenaSource(hybridmem.OffHeapSource()),
		)
	}
	if *MemoryLimit > 0 || *ExportRate > 0 {
		opts = append(opts, hybridmem.WithResourceController(hybridmem.NewResourceController(hybridmem.ResourceConfig{
			MemoryLimitBytes:   int64(*MemoryLimit),
			IOLimitBytesPerSec: int64(*ExportRate),
		})))
	}
	switch {
	case *AutoCollect > 0 && *Background:
		opts = append(opts, hybridmem.WithAutoCollectBackground(uint64(*AutoCollect)))
	case *AutoCollect > 0:
		opts = append(opts, hybridmem.WithAutoCollect(uint64(*AutoCollect)))
	}

	var reg *prometheus.Registry
	if *MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		obs, err := promobs.New(promobs.WithRegisterer(reg))
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, hybridmem.WithMetricsObserver(obs))
	}

	m := hybridmem.New(opts...)

	var exp *snapshot.Exporter
	if stores, err := openStores(ctx); err != nil {
		return err
	} else if len(stores) > 0 {
		c, err := snapshot.ParseCompression(*Compression)
		if err != nil {
			return err
		}
		exp = snapshot.NewExporter(stores[0],
			snapshot.WithMirrors(stores[1:]...),
			snapshot.WithCompression(c),
			snapshot.WithResourceController(m.ResourceController()),
			snapshot.WithLogger(logger),
			snapshot.WithRetain(*Retain),
		)
		if prev, err := snapshot.LoadLatest(ctx, stores[0]); err == nil {
			defer func() {
				if cur, err := snapshot.LoadLatest(context.WithoutCancel(ctx), stores[0]); err == nil && cur.Seq != prev.Seq {
					slog.Info("changes since previous snapshot", "previous", prev.Seq, "diff", snapshot.Compare(prev, cur).String())
				}
			}()
		} else if !errors.Is(err, snapshot.ErrNoSnapshot) {
			slog.Warn("cannot load previous snapshot", "error", err)
		}
	}

	w := &workload{
		m:         m,
		arenaSize: int(*ArenaSize),
		offHeap:   *OffHeap,
	}
	start := time.Now()
	if err := w.run(ctx, *Seed, *Ops, int(*MaxSize)); err != nil {
		_ = m.Close()
		return err
	}
	slog.Info("workload finished", "ops", *Ops, "live", w.live(), "duration", time.Since(start))

	if _, err := m.Report(*Verbose).WriteTo(os.Stdout); err != nil {
		return err
	}

	if exp != nil {
		if _, err := exp.ExportManager(ctx, m); err != nil {
			return fmt.Errorf("export snapshot: %w", err)
		}
	}

	if reg != nil {
		serveMetrics(ctx, reg)
	}

	w.release()
	var leak *hybridmem.LeakError
	if err := m.Close(); errors.As(err, &leak) {
		slog.Warn("objects survived shutdown", "objects", leak.Objects, "bytes", leak.Bytes)
	} else if err != nil {
		return fmt.Errorf("close manager: %w", err)
	}
	return nil
}

// serveMetrics blocks until ctx is done.
func serveMetrics(ctx context.Context, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: *MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("serving metrics", "addr", *MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server failed", "error", err)
	}
}
