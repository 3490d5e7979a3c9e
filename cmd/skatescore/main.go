package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"skatescore/internal"
	"skatescore/internal/api"
	"skatescore/internal/config"
	"skatescore/internal/listener"
	"skatescore/internal/logging"
	"skatescore/internal/metrics"
	"skatescore/internal/pipeline"
	"skatescore/internal/results"
	"skatescore/internal/source"
	"skatescore/internal/storage"
	"skatescore/internal/util"
	"skatescore/internal/worklist"
)

var errUsage = errors.New("unknown command")

func main() {
	err := run(os.Args[1:])
	if errors.Is(err, errUsage) {
		usage()
		os.Exit(1)
	}
	must(err)
}

// run executes one command. The store is closed before run returns, on
// success and on error alike.
func run(args []string) (err error) {
	if len(args) < 1 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}

	store, err := storage.OpenConfigured(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewManager()
	importer := pipeline.NewImportService(store, source.NewReader(),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(m),
		pipeline.WithIncremental(cfg.ImportIncremental),
	)

	cmd := args[0]
	switch cmd {
	case "import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		pdf := fs.String("pdf", "", "protocol document (.pdf, .eml or .txt)")
		name := fs.String("name", "", "competition name")
		season := fs.String("szn", "", "season, e.g. 2025-2026")
		program := fs.String("program", "", "Short|Free")
		gender := fs.String("gender", "", "Men|Women (m|w)")
		location := fs.String("location", "", "competition location")
		date := fs.String("date", "", "competition dates")
		_ = fs.Parse(args[1:])

		pt, err := internal.ParseProgramType(*program)
		if err != nil {
			return err
		}
		cat, err := internal.ParseCategory(*gender)
		if err != nil {
			return err
		}
		res, err := importer.ImportDocument(ctx, pipeline.Task{
			DocumentPath:    *pdf,
			CompetitionName: *name,
			Season:          *season,
			ProgramType:     pt,
			Category:        cat,
			Location:        util.OptionalString(*location),
			Date:            util.OptionalString(*date),
		})
		if err != nil {
			return err
		}
		fmt.Printf("imported %s competition=%d performances=%d elements=%d components=%d skipped=%d\n",
			res.DocumentPath, res.Competition.ID, res.Performances, res.Elements, res.Components, len(res.Issues))
	case "batch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "worklist yaml")
		index := fs.String("index", "", "event index url on a results site")
		name := fs.String("name", "", "competition name (defaults to the index title)")
		season := fs.String("szn", "", "season, required with --index")
		location := fs.String("location", "", "competition location")
		date := fs.String("date", "", "competition dates")
		_ = fs.Parse(args[1:])

		var tasks []pipeline.Task
		switch {
		case strings.TrimSpace(*file) != "":
			if tasks, err = worklist.Load(*file); err != nil {
				return err
			}
		case strings.TrimSpace(*index) != "":
			syncer := results.NewSyncService(results.NewClient(cfg), cfg, log)
			synced, err := syncer.Sync(ctx, *index, results.EventMeta{Name: *name, Season: *season, Location: *location, Date: *date})
			if err != nil {
				return err
			}
			fmt.Printf("index %q protocols=%d downloaded=%d\n", synced.Index.Title, len(synced.Tasks), synced.Downloaded)
			tasks = synced.Tasks
		default:
			return fmt.Errorf("--file or --index is required")
		}

		out := importer.ImportBatch(ctx, tasks)
		for _, res := range out.Imported {
			fmt.Printf("ok   %s performances=%d elements=%d components=%d\n", res.DocumentPath, res.Performances, res.Elements, res.Components)
		}
		for _, f := range out.Failed {
			fmt.Printf("fail %s: %v\n", f.Task.DocumentPath, f.Err)
		}
		fmt.Printf("batch done imported=%d failed=%d\n", len(out.Imported), len(out.Failed))
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		compID := fs.Int64("competitionId", 0, "competition id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(args[1:])
		if *compID == 0 || strings.TrimSpace(*out) == "" {
			return fmt.Errorf("--competitionId and --out are required")
		}
		comp, err := store.GetCompetition(ctx, *compID)
		if err != nil {
			return err
		}
		if comp == nil {
			return fmt.Errorf("no competition with id=%d", *compID)
		}
		details, err := pipeline.LoadPerformanceDetails(ctx, store, *compID, "")
		if err != nil {
			return err
		}
		if err := pipeline.ExportCompetitionToXLSX(*comp, details, *out); err != nil {
			return err
		}
		fmt.Printf("exported %d performances to %s\n", len(details), *out)
	case "competitions":
		comps, err := store.ListCompetitions(ctx)
		if err != nil {
			return err
		}
		for _, c := range comps {
			fmt.Printf("%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Season, util.Deref(c.Location))
		}
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		addr := fs.String("addr", cfg.HTTPAddr, "listen address")
		_ = fs.Parse(args[1:])
		return serve(ctx, *addr, api.NewServer(store, log, m.Handler()).Router(), log)
	case "results:listen":
		s := listener.NewService(listenerDeps(cfg, store, importer, log), cfg, log)
		return s.Run(ctx)
	default:
		return fmt.Errorf("%w: %s", errUsage, cmd)
	}
	return nil
}

func listenerDeps(cfg config.Config, store storage.Store, importer *pipeline.ImportService, log *slog.Logger) listener.Deps {
	deps := listener.Deps{
		Sync:     results.NewSyncService(results.NewClient(cfg), cfg, log),
		Importer: importer,
		Query:    store,
	}
	if ledger, ok := store.(listener.Ledger); ok {
		deps.Ledger = ledger
	}
	return deps
}

func serve(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func usage() {
	fmt.Println("usage: " + filepath.Base(os.Args[0]) + " <command>")
	fmt.Println("commands:")
	fmt.Println("  import --pdf=protocol.pdf --name=\"GP Cup of China\" --szn=2025-2026 --program=Free --gender=Men [--location=...] [--date=...]")
	fmt.Println("  batch --file=worklist.yaml")
	fmt.Println("  batch --index=https://.../index.htm --szn=2025-2026 [--name=...] [--location=...] [--date=...]")
	fmt.Println("  export:xlsx --competitionId=1 --out=./out/competition.xlsx")
	fmt.Println("  competitions")
	fmt.Println("  serve [--addr=:8000]")
	fmt.Println("  results:listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
