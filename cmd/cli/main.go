package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/charts"
	"github.com/dvloznov/sales-dashboard/internal/config"
	"github.com/dvloznov/sales-dashboard/internal/dashboard"
	"github.com/dvloznov/sales-dashboard/internal/domain"
	"github.com/dvloznov/sales-dashboard/internal/gcsuploader"
	infraBQ "github.com/dvloznov/sales-dashboard/internal/infra/bigquery"
	infraMongo "github.com/dvloznov/sales-dashboard/internal/infra/mongo"
	"github.com/dvloznov/sales-dashboard/internal/infra/source"
	"github.com/dvloznov/sales-dashboard/internal/jobs"
	"github.com/dvloznov/sales-dashboard/internal/logger"
	"github.com/dvloznov/sales-dashboard/internal/pipeline"
	"github.com/dvloznov/sales-dashboard/internal/selection"
	"github.com/dvloznov/sales-dashboard/internal/snapshot"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "render":
		runRender(log)
	case "png":
		runPNG(log)
	case "options":
		runOptions(log)
	case "snapshot":
		runSnapshot(log)
	case "show":
		runShow(log)
	case "sync-bq":
		runSyncBQ(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Sales Dashboard CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  render    Print the dashboard view for a selection as JSON")
	fmt.Println("  png       Write the selection's charts as PNG files")
	fmt.Println("  options   Print the selector options for a selection")
	fmt.Println("  snapshot  Export the selection's view and charts to GCS")
	fmt.Println("  show      Print a stored snapshot from a gs:// URI")
	fmt.Println("  sync-bq   Copy the Mongo purchase join into the BigQuery table")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nSelection flags: -client NAME -year YYYY -course NAME.")
	fmt.Println("Omit -year to use the current year; pass -year '' to clear it.")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// selectionFlags holds the -client, -year and -course values.
type selectionFlags struct {
	client string
	year   optionalString
	course string
}

// optionalString remembers whether the flag was given at all.
type optionalString struct {
	set   bool
	value string
}

func (o *optionalString) String() string { return o.value }

func (o *optionalString) Set(v string) error {
	o.set = true
	o.value = v
	return nil
}

func registerSelection(fs *flag.FlagSet) *selectionFlags {
	s := &selectionFlags{}
	fs.StringVar(&s.client, "client", "", "Client name")
	fs.Var(&s.year, "year", "Year (omit for the current year, empty to clear)")
	fs.StringVar(&s.course, "course", "", "Course (item) name")
	return s
}

func (s *selectionFlags) request() (selection.Request, error) {
	req := selection.Request{Client: s.client, Course: s.course}
	if s.year.set {
		year, err := selection.ParseYear(s.year.value)
		if err != nil {
			return req, err
		}
		req.Year = year
	}
	return req, nil
}

// setup parses the command's flags and opens the configured source.
func setup(log zerolog.Logger, fs *flag.FlagSet) (context.Context, *config.Config, *dashboard.Service, func()) {
	cfg, err := config.Parse(fs, os.Args[2:], os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log = log.Level(logger.ParseLevel(cfg.LogLevel))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	ctx = logger.WithContext(ctx, log)

	src, err := source.Open(ctx, cfg)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Str("source", cfg.DataSource).Msg("Failed to open purchase source")
	}

	service := dashboard.NewService(dashboard.Options{
		Source:         src,
		SourceTZ:       cfg.SourceTZ,
		TargetTZ:       cfg.TargetTZ,
		TopN:           cfg.TopN,
		CurrencyPrefix: cfg.CurrencyPrefix,
		YearsPerClient: cfg.YearsPerClient,
	})
	return ctx, cfg, service, func() {
		src.Close()
		cancel()
	}
}

func render(ctx context.Context, log zerolog.Logger, service *dashboard.Service, sel *selectionFlags) *dashboard.View {
	req, err := sel.request()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid selection")
	}
	view, err := service.Render(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Str("code", domain.ErrorCode(err)).Msg("Render failed")
	}
	return view
}

func runRender(log zerolog.Logger) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	sel := registerSelection(fs)
	ctx, _, service, done := setup(log, fs)
	defer done()

	printJSON(render(ctx, log, service, sel))
}

func runOptions(log zerolog.Logger) {
	fs := flag.NewFlagSet("options", flag.ExitOnError)
	sel := registerSelection(fs)
	ctx, _, service, done := setup(log, fs)
	defer done()

	view := render(ctx, log, service, sel)
	for _, s := range []selection.Selector{view.Controls.Client, view.Controls.Year, view.Controls.Course} {
		if !s.Offered {
			fmt.Printf("%s (not offered)\n", s.Label)
			continue
		}
		fmt.Printf("%s %s\n", s.Label, strings.Join(s.Options, ", "))
		if s.Selected != "" {
			fmt.Printf("  selected: %s\n", s.Selected)
		}
	}
}

func runPNG(log zerolog.Logger) {
	fs := flag.NewFlagSet("png", flag.ExitOnError)
	sel := registerSelection(fs)
	outDir := fs.String("out", ".", "Directory for the PNG files")
	width := fs.Int("width", charts.DefaultWidth, "Image width in pixels")
	height := fs.Int("height", charts.DefaultHeight, "Image height in pixels")
	ctx, _, service, done := setup(log, fs)
	defer done()

	view := render(ctx, log, service, sel)
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create output directory")
	}

	for _, kind := range charts.Kinds {
		spec := view.Charts.Get(kind)
		if spec == nil {
			continue
		}
		path := filepath.Join(*outDir, string(kind)+".png")
		if err := writePNG(spec, path, *width, *height); err != nil {
			if errors.Is(err, charts.ErrNoData) {
				log.Warn().Str("chart", string(kind)).Msg("Chart has no data, skipped")
				continue
			}
			log.Fatal().Err(err).Str("chart", string(kind)).Msg("Failed to write chart")
		}
		fmt.Println(path)
	}
}

func writePNG(spec *charts.Spec, path string, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := charts.RenderPNG(spec, f, width, height); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func runSnapshot(log zerolog.Logger) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	sel := registerSelection(fs)
	ctx, cfg, service, done := setup(log, fs)
	defer done()

	req, err := sel.request()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid selection")
	}

	exporter := &snapshot.Exporter{
		Renderer: service,
		Storage:  gcsuploader.NewGCSStorageService(),
		Bucket:   cfg.SnapshotBucket,
		Width:    charts.DefaultWidth,
		Height:   charts.DefaultHeight,
	}
	job := &jobs.SnapshotJob{JobID: uuid.New().String(), Client: req.Client, Year: req.Year, Course: req.Course}

	uris, err := exporter.Export(ctx, job)
	if err != nil {
		log.Fatal().Err(err).Msg("Snapshot export failed")
	}
	for _, uri := range uris {
		fmt.Println(uri)
	}
}

func runShow(log zerolog.Logger) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	uri := fs.String("uri", "", "gs:// URI of a snapshot JSON object")
	fs.Parse(os.Args[2:])

	if *uri == "" {
		log.Fatal().Msg("Usage: cli show -uri gs://BUCKET/snapshots/DATE/JOB.json")
	}

	ctx := logger.WithContext(context.Background(), log)
	data, err := gcsuploader.FetchFromGCS(ctx, *uri)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch snapshot")
	}

	var doc snapshot.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Fatal().Err(err).Msg("Object is not a snapshot document")
	}
	printJSON(doc)
}

// runSyncBQ reads the Mongo join and streams it into BigQuery. Dates are
// stored as UTC instants, so a BigQuery source should run with SOURCE_TZ=UTC.
func runSyncBQ(log zerolog.Logger) {
	fs := flag.NewFlagSet("sync-bq", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Convert the records but do not insert them")
	cfg, err := config.Parse(fs, os.Args[2:], os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.BQProject == "" || cfg.BQDataset == "" || cfg.BQTable == "" {
		log.Fatal().Msg("BQ_PROJECT, BQ_DATASET and BQ_TABLE must be set")
	}

	log = log.Level(logger.ParseLevel(cfg.LogLevel))
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	src, err := infraMongo.NewPurchaseSource(ctx, cfg.MongoURI, cfg.MongoDatabase, source.Collections(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer src.Close()

	records, err := src.FetchPurchases(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("code", domain.ErrorCode(err)).Msg("Failed to fetch purchases")
	}

	enricher := pipeline.NewEnricher(cfg.SourceTZ, time.UTC)
	rows := make([]*infraBQ.PurchaseRow, 0, len(records))
	for i, rec := range records {
		at, err := enricher.ParseDate(rec.Date)
		if err != nil {
			log.Fatal().Err(err).Int("index", i).Msg("Record has a malformed date")
		}
		rows = append(rows, infraBQ.NewPurchaseRow(rec, at))
	}

	if *dryRun {
		log.Info().Int("rows", len(rows)).Msg("Dry run, nothing inserted")
		return
	}

	repo, err := infraBQ.NewBigQueryPurchaseRepository(ctx, cfg.BQProject, cfg.BQDataset, cfg.BQTable)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer repo.Close()

	if err := repo.InsertPurchases(ctx, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to insert purchases")
	}
	log.Info().Int("rows", len(rows)).Str("table", cfg.BQTable).Msg("Purchases synced to BigQuery")
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
}
