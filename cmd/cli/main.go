package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/kv-shortener/pkg/app"
	"github.com/wadjakorntonsri/kv-shortener/pkg/config"
	"github.com/wadjakorntonsri/kv-shortener/pkg/core/domain"
	"github.com/wadjakorntonsri/kv-shortener/pkg/logger"
)

const usage = "expected 'export', 'import' or 'migrate' subcommands"

// record is one link in an export file, together with its visit log.
type record struct {
	domain.Link
	Visits []domain.Visit `json:"visits,omitempty"`
}

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportFile := exportCmd.String("file", "", "write to file instead of stdout")
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON file to import")
	importOverwrite := importCmd.Bool("overwrite", false, "replace links that already exist")
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.AppEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer application.Close()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		out := io.Writer(os.Stdout)
		if *exportFile != "" {
			f, err := os.Create(*exportFile)
			if err != nil {
				log.Fatal("create export file", zap.Error(err))
			}
			defer f.Close()
			out = f
		}
		err = doExport(ctx, application, out)
	case "import":
		importCmd.Parse(os.Args[2:])
		if *importFile == "" {
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		var n int
		n, err = doImport(ctx, application, *importFile, *importOverwrite, log)
		log.Info("import finished", zap.Int("imported", n))
	case "migrate":
		migrateCmd.Parse(os.Args[2:])
		var n int
		n, err = application.Links.Migrate(ctx)
		log.Info("migrate finished", zap.Int("rewritten", n))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		log.Fatal(os.Args[1]+" failed", zap.Error(err))
	}
}

func doExport(ctx context.Context, a *app.App, w io.Writer) error {
	links, err := a.Links.Dump(ctx)
	if err != nil {
		return err
	}

	records := make([]record, 0, len(links))
	for _, l := range links {
		stats, err := a.Stats.Get(ctx, l.Key)
		if err != nil {
			return err
		}
		records = append(records, record{Link: l, Visits: stats.Visits})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

func doImport(ctx context.Context, a *app.App, filename string, overwrite bool, log *zap.Logger) (int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var records []record
	if err := json.NewDecoder(file).Decode(&records); err != nil {
		return 0, fmt.Errorf("decode %s: %w", filename, err)
	}

	count := 0
	for i := range records {
		rec := &records[i]
		if !overwrite {
			existing, err := a.Links.Get(ctx, rec.Key)
			if err != nil {
				return count, err
			}
			if existing != nil {
				log.Info("skipping existing key", zap.String("key", rec.Key))
				continue
			}
		}

		if err := a.Links.Create(ctx, &rec.Link); err != nil {
			log.Warn("failed to import link", zap.String("key", rec.Key), zap.Error(err))
			continue
		}
		if len(rec.Visits) > 0 {
			if err := a.Stats.Replace(ctx, rec.Key, rec.Visits); err != nil {
				return count, err
			}
		}
		count++
	}
	return count, nil
}
