package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	importapp "github.com/propbill/backend/internal/application/import"
	"github.com/propbill/backend/internal/infrastructure/config"
	"github.com/propbill/backend/internal/infrastructure/logger"
	"github.com/propbill/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

// run keeps deferred cleanup ahead of the exit in main
func run() int {
	var (
		file      string
		company   string
		batchSize int
		logLevel  string
	)
	flag.StringVar(&file, "file", "", "Spreadsheet to import (.xlsx or .csv)")
	flag.StringVar(&company, "company", "", "Company recorded on imported properties (default: import.default_company)")
	flag.IntVar(&batchSize, "batch-size", 0, "Writes per commit (default: import.batch_size)")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flag.Parse()

	if file == "" {
		fmt.Fprintln(os.Stderr, "Usage: import -file <accounts.xlsx> [-company name] [-batch-size n]")
		return 2
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if company == "" {
		company = cfg.Import.DefaultCompany
	}
	if batchSize <= 0 {
		batchSize = cfg.Import.BatchSize
	}

	data, err := os.ReadFile(file)
	if err != nil {
		log.Fatal("Failed to read spreadsheet", zap.String("file", file), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := persistence.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open document store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Warn("Error closing document store", zap.Error(err))
		}
	}()

	pipeline := importapp.NewPipeline(store, importapp.PipelineConfig{
		BatchSize: batchSize,
		Company:   company,
		Logger:    log,
	})
	service := importapp.NewService(pipeline, nil, persistence.NewDocumentImportRunRepository(store), log)

	summary, err := service.ImportUpload(ctx, importapp.Upload{
		FileName: filepath.Base(file),
		Data:     data,
	}, importapp.WithProgress(func(line string) {
		fmt.Println(line)
	}))

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if err != nil {
		log.Error("Import failed", zap.String("import_id", summary.ImportID), zap.Error(err))
		return 1
	}
	return 0
}
