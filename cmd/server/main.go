package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"ledgerlens/internal/auth"
	"ledgerlens/internal/classifier"
	"ledgerlens/internal/config"
	"ledgerlens/internal/corrections"
	"ledgerlens/internal/handler"
	"ledgerlens/internal/port"
	"ledgerlens/internal/ranker"
	"ledgerlens/internal/receipt"
	"ledgerlens/internal/repository/postgres"
	"ledgerlens/internal/router"
	"ledgerlens/internal/service"
	s3storage "ledgerlens/internal/storage/s3"
	"ledgerlens/internal/taxonomy"
	"ledgerlens/internal/validator"
	"ledgerlens/internal/vision"
	"ledgerlens/internal/vision/claude"
	"ledgerlens/internal/vision/gemini"
	"ledgerlens/internal/vision/openai"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The taxonomy is mandatory; a missing model only degrades the service.
	registry, err := taxonomy.Load(&cfg.Taxonomy)
	if err != nil {
		return fmt.Errorf("failed to load taxonomy: %w", err)
	}
	log.Printf("taxonomy loaded: %d categories, fallback %q", registry.Len(), registry.Fallback())

	var model port.CategoryModel
	if km, err := classifier.LoadKeywordModel(cfg.Classifier.ModelPath); err != nil {
		log.Printf("WARNING: category model not loaded, categorization disabled: %v", err)
	} else {
		model = km
		log.Printf("category model loaded: %s", km.Name())
	}
	categorizer := service.NewCategorizer(
		classifier.NewAdapter(registry, model),
		ranker.New(registry, ranker.Options{
			TopK:               cfg.Classifier.TopK,
			LowConfidenceFloor: cfg.Classifier.LowConfidenceFloor,
		}),
	)

	// Database
	var db *sqlx.DB
	if cfg.DB.Enabled {
		db, err = postgres.NewDB(&cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
	}

	correctionStore, err := corrections.Open(&cfg.Corrections, registry, db)
	if err != nil {
		return fmt.Errorf("failed to open correction store: %w", err)
	}
	defer correctionStore.Close()

	// Vision providers
	vision.RegisterProvider("claude", func(pc *config.VisionProviderConfig) (port.VisionService, error) {
		return claude.NewClient(pc), nil
	})
	vision.RegisterProvider("gemini", func(pc *config.VisionProviderConfig) (port.VisionService, error) {
		return gemini.NewClient(pc), nil
	})
	vision.RegisterProvider("openai", func(pc *config.VisionProviderConfig) (port.VisionService, error) {
		return openai.NewClient(pc), nil
	})
	visionSvc, err := configuredVision(&cfg.Vision)
	if err != nil {
		return fmt.Errorf("failed to initialize vision service: %w", err)
	}

	// Storage
	var archive port.ObjectStorage
	if cfg.Receipt.Archive {
		archive, err = s3storage.NewReceiptArchive(context.Background(), &cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
	}

	maxImageBytes := cfg.Receipt.MaxImageSizeMB << 20
	extractorOpts := []receipt.Option{
		receipt.WithCategorizer(categorizer),
		receipt.WithMaxImageBytes(maxImageBytes),
		receipt.WithTimeout(cfg.Receipt.Timeout()),
	}
	if cfg.Receipt.Archive {
		extractorOpts = append(extractorOpts, receipt.WithArchive(archive, cfg.S3.Bucket))
	}
	extractor := receipt.NewExtractor(visionSvc, registry, validator.NewEngine(validator.NewBuiltinRegistry()), extractorOpts...)

	// Services
	categorizationSvc := service.NewCategorizationService(registry, categorizer, correctionStore, extractor, service.BatchOptions{
		Concurrency:  cfg.Classifier.BatchConcurrency,
		MaxBatchSize: cfg.Classifier.MaxBatchSize,
	})

	handlers := router.Handlers{
		Categorize: handler.NewCategorizeHandler(categorizationSvc),
		Receipt:    handler.NewReceiptHandler(categorizationSvc, maxImageBytes),
	}

	var dbPing func(ctx context.Context) error
	if db != nil {
		dbPing = db.PingContext

		tokens, err := auth.NewTokenManager(&cfg.JWT)
		if err != nil {
			return fmt.Errorf("failed to initialize token manager: %w", err)
		}
		var receipts *service.ReceiptStore
		if cfg.Receipt.Archive {
			receipts = &service.ReceiptStore{Storage: archive, Bucket: cfg.S3.Bucket, ExpirySeconds: cfg.S3.PresignExpiry}
		}
		expenseSvc := service.NewExpenseService(
			postgres.NewExpenseRepo(db), registry, categorizer, extractor, correctionStore, receipts,
		)
		handlers.Expense = handler.NewExpenseHandler(expenseSvc, maxImageBytes)
		handlers.Tokens = tokens
	} else {
		log.Println("database disabled: expense endpoints not registered")
	}
	handlers.Health = handler.NewHealthHandler(categorizationSvc, dbPing)

	r := router.Setup(handlers, cfg.CORS.AllowedOrigins)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// configuredVision builds the vision chain, skipping providers without an API key.
func configuredVision(cfg *config.VisionConfig) (port.VisionService, error) {
	usable := config.VisionConfig{}
	slots := []*config.VisionProviderConfig{&usable.Primary, &usable.Secondary, &usable.Tertiary}
	i := 0
	for _, pc := range cfg.Providers() {
		if pc.APIKey == "" {
			log.Printf("WARNING: vision provider %s has no API key, skipping", pc.Provider)
			continue
		}
		*slots[i] = *pc
		i++
	}
	if i == 0 {
		log.Println("WARNING: no vision provider configured, receipt extraction disabled")
		return nil, nil
	}
	return vision.NewFromConfig(&usable)
}
