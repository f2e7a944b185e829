package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"coursemind/internal/assembler"
	"coursemind/internal/chat"
	"coursemind/internal/config"
	"coursemind/internal/contentcache"
	"coursemind/internal/coursestore"
	"coursemind/internal/database"
	"coursemind/internal/doctext"
	"coursemind/internal/extract"
	"coursemind/internal/handlers"
	"coursemind/internal/jobs"
	"coursemind/internal/llm"
	"coursemind/internal/logging"
	"coursemind/internal/models"
	"coursemind/internal/weblink"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting CourseMind Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, Provider: %s:%s)", cfg.Port, cfg.Provider.Kind, cfg.Provider.Model)

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		log.Fatalf("❌ Failed to load settings: %v", err)
	}

	// Initialize SQLite database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Select the fast cache backend: Redis when configured, in-process
	// otherwise. A Redis connection failure falls back rather than aborting
	// since caching is an optimization only.
	var cacheStore contentcache.Store
	if cfg.RedisURL != "" {
		log.Println("🔗 Connecting to Redis...")
		redisStore, err := contentcache.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Failed to connect to Redis: %v (using in-process cache)", err)
			cacheStore = contentcache.NewMemoryStore()
		} else {
			defer redisStore.Close()
			log.Println("✅ Redis connected successfully")
			cacheStore = redisStore
		}
	} else {
		cacheStore = contentcache.NewMemoryStore()
		log.Println("📦 Using in-process cache backend")
	}
	cacheManager := contentcache.NewManager(cacheStore)
	docRows := contentcache.NewDocumentRows(db.DB)

	// Content pipeline
	courseStore := coursestore.New(db.DB)
	docChain := doctext.DefaultChain(os.TempDir())
	extractors := extract.All(extract.Deps{
		Store:    courseStore,
		Cache:    cacheManager,
		DocCache: docRows,
		DocChain: docChain,
	})

	// External links
	linkStore := weblink.NewLinkStore(db.DB)
	linkCfg := weblink.DefaultConfig()
	linkCfg.AllowedDomains = settings.Links.AllowedDomains
	if settings.Links.UserAgent != "" {
		linkCfg.UserAgent = settings.Links.UserAgent
	}
	linkCfg.FetchTimeout = settings.FetchTimeout()
	linkCfg.RefreshTTL = settings.RefreshTTL()
	if settings.Links.GlobalRate > 0 {
		linkCfg.GlobalRate = settings.Links.GlobalRate
	}
	ingestor := weblink.NewIngestor(linkCfg, linkStore)
	linkService := weblink.NewService(linkStore, ingestor)

	asm := assembler.New(extractors, cacheManager, linkService)

	// Provider clients
	uploadStore := llm.NewUploadStore(db.DB)
	clientFactory := func(ref models.ProviderRef) (llm.Client, error) {
		client, err := llm.NewClient(ref, cfg.APIKeyFor(ref.Kind), uploadStore)
		if err != nil {
			return nil, err
		}
		client.Options().SetMaxTokens(cfg.MaxOutputTokens)
		return client, nil
	}
	processor := chat.NewProcessor(asm, clientFactory)

	sourceConfig := settings.SourceConfig
	invalidate := func(ownerID string) {
		asm.Invalidate(ownerID, sourceConfig())
	}

	// Background jobs
	var scheduler *jobs.Scheduler
	if cfg.JobsEnabled {
		scheduler, err = jobs.NewScheduler(linkStore, ingestor, docRows)
		if err != nil {
			log.Fatalf("❌ Failed to create job scheduler: %v", err)
		}
		scheduler.Start()
		log.Println("🕐 Background jobs: link refresh (hourly), cache sweep (daily)")
	} else {
		log.Println("⚠️  Background jobs disabled")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "CourseMind v1.0",
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second, // provider polling can hold a request for a while
		BodyLimit:    2 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("coursemind")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	chatHandler := handlers.NewChatHandler(processor, cfg.Provider, sourceConfig)
	linkHandler := handlers.NewLinkHandler(linkService, invalidate)
	contextHandler := handlers.NewContextHandler(asm, sourceConfig)
	healthHandler := handlers.NewHealthHandler(db)

	app.Get("/health", healthHandler.Handle)
	api := app.Group("/api")
	api.Post("/chat", chatHandler.Handle)
	api.Get("/blocks/:id/links", linkHandler.List)
	api.Put("/blocks/:id/links", linkHandler.Put)
	api.Post("/blocks/:id/context/rebuild", contextHandler.Rebuild)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if scheduler != nil {
			if err := scheduler.Stop(); err != nil {
				log.Printf("⚠️  Error stopping job scheduler: %v", err)
			}
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️  Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
