package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/annel0/worldcache/internal/config"
	"github.com/annel0/worldcache/internal/logging"
	"github.com/annel0/worldcache/internal/mc"
	"github.com/annel0/worldcache/internal/mc/world"
	"github.com/annel0/worldcache/internal/probe"
	"github.com/annel0/worldcache/internal/worldcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
)

const usage = `Usage: worldprobe <command> [flags]

Commands:
  scan           sweep every chunk of the world and report cache stats
  block [--] X Y Z  print all attributes of one block
  gen            write a synthetic world
  pack           import the world's region files into a BadgerDB store (--db)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("не указана команда")
	}

	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "YAML config file")
	worldPath := fs.StringP("world", "w", "", "world directory")
	logLevel := fs.String("log-level", "", "trace, debug, info, warn, error")
	workers := fs.IntP("workers", "j", 0, "scan workers, one cache each")
	metricsAddr := fs.String("metrics", "", "serve Prometheus /metrics on this address during scan")
	seed := fs.Int64("seed", 1, "gen: noise seed")
	radius := fs.Int32("radius", 1, "gen: regions from -radius to radius-1")
	chunks := fs.Int32("chunks", 4, "gen: chunks per region side")
	corrupt := fs.Bool("corrupt", false, "gen: add a corrupt region and one corrupt chunk per region")
	dbPath := fs.String("db", "", "pack: BadgerDB store directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if *worldPath != "" {
		cfg.World.Path = *worldPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *workers > 0 {
		cfg.Probe.Workers = *workers
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	if err := setupLogging(cfg.Logging); err != nil {
		return err
	}
	defer logging.CloseDefaultLogger()

	switch cmd {
	case "scan":
		return runScan(ctx, cfg, out)
	case "block":
		return runBlock(cfg, fs.Args(), out)
	case "gen":
		opts := probe.GenOptions{Seed: *seed, Radius: *radius, ChunksPerSide: *chunks, CorruptRegion: *corrupt}
		if *corrupt {
			opts.CorruptChunks = 1
		}
		return runGen(cfg, opts, out)
	case "pack":
		return runPack(cfg, *dbPath, out)
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("неизвестная команда %q", cmd)
	}
}

func setupLogging(cfg config.LoggingConfig) error {
	level, err := logging.ParseLevel(cfg.GetLevel())
	if err != nil {
		return err
	}
	logging.Configure(logging.Options{Dir: cfg.Dir, ConsoleLevel: level, FileLevel: fileLevel(level)})
	return logging.InitDefaultLogger("worldprobe")
}

// fileLevel в файл пишется как минимум DEBUG
func fileLevel(level logging.LogLevel) logging.LogLevel {
	if level > logging.DEBUG {
		return logging.DEBUG
	}
	return level
}

// openSource открывает мир: каталог с файлами регионов или хранилище BadgerDB
func openSource(path string) (probe.Source, func(), error) {
	if world.IsStore(path) {
		store, err := world.OpenStore(path)
		if err != nil {
			return nil, nil, err
		}
		logging.Info("📦 Мир читается из BadgerDB %s", path)
		return store, func() {
			if err := store.Close(); err != nil {
				logging.Warn("Ошибка закрытия BadgerDB: %v", err)
			}
		}, nil
	}

	dir, err := world.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return dir, func() {}, nil
}

func runScan(ctx context.Context, cfg *config.Config, out io.Writer) error {
	path := cfg.World.GetPath()
	src, closeSrc, err := openSource(path)
	if err != nil {
		return err
	}
	defer closeSrc()

	opts := probe.Options{
		Workers:    cfg.Probe.GetWorkers(),
		MaxHeight:  cfg.Probe.GetMaxHeight(),
		FlushEvery: cfg.Probe.GetFlushEvery(),
	}

	if addr := cfg.Metrics.GetAddr(); addr != "" {
		reg := prometheus.NewRegistry()
		opts.Metrics = worldcache.NewMetrics(reg)
		srv := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
			}
		}()
		defer srv.Close()
	}

	logging.Info("🔍 Обход мира %s, потоков: %d", path, opts.Workers)
	start := time.Now()
	report, err := probe.Scan(ctx, src, opts)
	if err != nil {
		return fmt.Errorf("обход прерван: %w", err)
	}
	logging.Info("✅ Обход завершён за %v", time.Since(start).Round(time.Millisecond))

	printReport(out, report)
	return nil
}

func printReport(out io.Writer, r *probe.Report) {
	fmt.Fprintf(out, "regions:        %d\n", r.Regions)
	fmt.Fprintf(out, "chunks:         %d\n", r.Chunks)
	fmt.Fprintf(out, "columns:        %d\n", r.Columns)
	fmt.Fprintf(out, "water surface:  %d\n", r.WaterSurface)
	if r.Columns > 0 {
		fmt.Fprintf(out, "avg sky light:  %.2f\n", float64(r.SkyLightSum)/float64(r.Columns))
	}

	ids := make([]uint16, 0, len(r.TopBlocks))
	for id := range r.TopBlocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.TopBlocks[ids[i]] > r.TopBlocks[ids[j]] })
	for _, id := range ids {
		fmt.Fprintf(out, "  top block %-5d %d\n", id, r.TopBlocks[id])
	}

	printStats(out, "region cache", r.RegionStats, r.BrokenRegions)
	printStats(out, "chunk cache", r.ChunkStats, r.BrokenChunks)
}

func printStats(out io.Writer, name string, s worldcache.CacheStats, broken int) {
	fmt.Fprintf(out, "%s: hits=%d misses=%d unavailable=%d broken=%d\n",
		name, s.Hits, s.Misses, s.Unavailable, broken)
}

func runBlock(cfg *config.Config, args []string, out io.Writer) error {
	if len(args) != 3 {
		return errors.New("block: нужны координаты X Y Z")
	}
	var coords [3]int32
	for i, a := range args {
		v, err := strconv.ParseInt(a, 10, 32)
		if err != nil {
			return fmt.Errorf("block: неверная координата %q: %w", a, err)
		}
		coords[i] = int32(v)
	}

	src, closeSrc, err := openSource(cfg.World.GetPath())
	if err != nil {
		return err
	}
	defer closeSrc()

	cache := worldcache.New(src)
	pos := mc.BlockPos{X: coords[0], Y: coords[1], Z: coords[2]}
	b := cache.GetBlock(pos, nil, mc.GetAll)
	fmt.Fprintf(out, "%v: id=%d data=%d biome=%d block_light=%d sky_light=%d full_water=%t\n",
		pos, b.ID, b.Data, b.Biome, b.BlockLight, b.SkyLight, b.IsFullWater())
	return nil
}

func runGen(cfg *config.Config, opts probe.GenOptions, out io.Writer) error {
	path := cfg.World.GetPath()
	if err := probe.Generate(path, opts); err != nil {
		return err
	}
	fmt.Fprintf(out, "world written to %s\n", path)
	return nil
}

func runPack(cfg *config.Config, dbPath string, out io.Writer) error {
	if dbPath == "" {
		return errors.New("pack: не указан --db")
	}
	dir, err := world.Open(cfg.World.GetPath())
	if err != nil {
		return err
	}

	store, err := world.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Import(dir)
	if err != nil {
		return err
	}
	logging.Info("📦 Импортировано регионов: %d", n)
	fmt.Fprintf(out, "packed %d regions into %s\n", n, dbPath)
	return nil
}
