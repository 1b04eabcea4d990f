package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/platewatch/internal/anpr"
	"github.com/banshee-data/platewatch/internal/anpr/detect"
	"github.com/banshee-data/platewatch/internal/anpr/ocr"
	"github.com/banshee-data/platewatch/internal/anpr/region"
	"github.com/banshee-data/platewatch/internal/api"
	"github.com/banshee-data/platewatch/internal/config"
	"github.com/banshee-data/platewatch/internal/db"
	"github.com/banshee-data/platewatch/internal/fsutil"
	"github.com/banshee-data/platewatch/internal/ledger"
	"github.com/banshee-data/platewatch/internal/monitoring"
	"github.com/banshee-data/platewatch/internal/timeutil"
	"github.com/banshee-data/platewatch/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Run in dev mode (contour detector, no model weights needed)")
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPath      = flag.String("db-path", "platewatch.db", "Path to the SQLite database")
	configPath  = flag.String("config", "", "Path to a service config JSON (defaults apply when empty)")
	modelPath   = flag.String("model", "", "Path to the ONNX detection model (overrides config)")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// buildOracles constructs the detection and recognition oracles, or returns
// nils when the service must run without them. A missing model outside dev
// mode is not fatal: the record-store endpoints stay up and the detection
// endpoint answers 503.
func buildOracles(cfg *config.ServiceConfig) (anpr.Detector, anpr.Recognizer) {
	var detector anpr.Detector
	if *devMode {
		detector = detect.NewContourDetector()
		log.Printf("dev mode: using contour detector")
	} else {
		path := cfg.GetModelPath()
		if *modelPath != "" {
			path = *modelPath
		}
		dnn, err := detect.NewDNNDetector(path, cfg.GetDetectionConfidence(), cfg.GetNMSThreshold(), cfg.GetInferenceTimeout())
		if err != nil {
			log.Printf("detection model unavailable (%v); detection endpoint disabled", err)
			return nil, nil
		}
		detector = dnn
		log.Printf("loaded detection model %s", path)
	}

	recognizer, err := ocr.NewTesseractRecognizer(cfg.GetOCRLanguage(), cfg.GetOCRWhitelist(), cfg.GetInferenceTimeout())
	if err != nil {
		log.Printf("OCR unavailable (%v); detection endpoint disabled", err)
		if detector != nil {
			detector.Close()
		}
		return nil, nil
	}

	return detector, recognizer
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [migrate <command>]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "License plate detection and violation lookup service.\n\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nRun '%s migrate' for migration commands.\n", os.Args[0])
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("platewatch %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	// In dev mode migrations load from the source tree so new files are
	// picked up without rebuilding.
	db.DevMode = *devMode

	if flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], *dbPath)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	monitoring.SetVerbose(*verbose)

	cfg := config.MustLoadDefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadServiceConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}

	fs := fsutil.OSFileSystem{}
	clock := timeutil.RealClock{}

	for _, dir := range []string{cfg.GetUploadDir(), cfg.GetResultsDir(), cfg.GetCropsDir()} {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	database, err := db.NewDBWithMigrationCheck(*dbPath, true)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	matcher := ledger.NewMatcher(database)

	var pipeline *anpr.Pipeline
	detector, recognizer := buildOracles(cfg)
	if detector != nil {
		pipeline = &anpr.Pipeline{
			Detector:         detector,
			Recognizer:       recognizer,
			Extractor:        region.NewExtractor(clock, fs, cfg.GetCropsDir(), cfg.GetMinRegionFraction()),
			Matcher:          matcher,
			Store:            database,
			Clock:            clock,
			FS:               fs,
			ResultsDir:       cfg.GetResultsDir(),
			MinOCRConfidence: cfg.GetMinOCRConfidence(),
		}
		defer detector.Close()
		defer recognizer.Close()
	}

	retention := db.NewRetentionWorker(database, fs, clock,
		cfg.GetDetectionLogTTL(), cfg.GetArtifactTTL(),
		cfg.GetUploadDir(), cfg.GetResultsDir(), cfg.GetCropsDir())
	retention.Interval = cfg.GetRetentionInterval()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retention.Start()
	defer retention.Stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(pipeline, database, matcher, fs, clock, cfg).ServeMux()
		database.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("platewatch %s listening on %s", version.Version, *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
