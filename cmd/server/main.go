package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postcadence/configs"
	"github.com/maheshrc27/postcadence/internal/api/handlers"
	"github.com/maheshrc27/postcadence/internal/api/middleware"
	job "github.com/maheshrc27/postcadence/internal/jobs"
	"github.com/maheshrc27/postcadence/internal/lock"
	"github.com/maheshrc27/postcadence/internal/metrics"
	"github.com/maheshrc27/postcadence/internal/queue"
	"github.com/maheshrc27/postcadence/internal/repository"
	"github.com/maheshrc27/postcadence/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	setupLogger(cfg.LogLevel)

	ctx := context.Background()

	var db *sql.DB
	var postRepo repository.PostRepository
	if cfg.PostgresURI != "" {
		db, err = sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("Database is unreachable: %v", err)
		}
		if err := repository.Migrate(ctx, db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		postRepo = repository.NewPostRepository(db)
	} else {
		slog.Warn("POSTGRES_URI is not set, posts are kept in memory")
		postRepo = repository.NewMemoryPostRepository()
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis is unreachable: %v", err)
	}
	locker := lock.NewRedisLocker(rdb, "postcadence:lock:")

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid slot timezone: %v", err)
	}

	retry := service.DefaultHTTPRetryConfig()
	retry.MaxRetries = cfg.HTTPMaxRetries
	httpClient := &http.Client{Timeout: 2 * time.Minute}
	fetcher := service.NewImageFetcher(httpClient, retry)

	var storage service.ObjectStorage
	if cfg.R2.BucketName != "" {
		r2Service, err := service.NewR2Service(ctx, cfg.R2)
		if err != nil {
			log.Fatalf("Failed to configure object storage: %v", err)
		}
		storage = r2Service
	}

	linkedin := service.NewLinkedInService(cfg.LinkedInAPIURL, cfg.LinkedInAccounts, fetcher, retry, cfg.PublishConcurrently)
	publishers := []service.ChannelPublisher{
		linkedin,
		service.NewTwitterService(cfg.TwitterAPIURL, cfg.TwitterUploadURL, cfg.TwitterAccounts, fetcher, retry, cfg.PublishConcurrently),
	}
	scheduler := service.NewSlotScheduler(cfg.SlotHours, loc, cfg.SlotHorizonDays)
	mediaResolver := service.NewMediaResolver(service.NewIdeogramService(cfg.Ideogram, httpClient, retry))

	postService := service.NewPostService(postRepo, scheduler, locker, storage, publishers, m)
	publicationService := service.NewPublicationService(postRepo, mediaResolver, publishers, locker, m, cfg.PublishConcurrently)
	duePostsJob := job.NewDuePostsJob(postRepo, publicationService, m)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    20 * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	cronHandler := handlers.NewCronHandler(duePostsJob)
	app.Post("/cron/run-due-posts", middleware.CronSecret(cfg.CronSecret), cronHandler.RunDuePosts)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	auth := handlers.NewAuthHandler(*cfg)
	app.Post("/auth/session", authMiddleware.AuthMiddleware(), auth.Login)
	app.Delete("/auth/session", auth.Logout)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, publicationService, client)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.PostInfo)
	api.Patch("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Post("/posts/:id/publish", post.PublishPost)
	api.Post("/uploads", post.UploadImage)

	accounts := handlers.NewAccountHandler(linkedin)
	api.Get("/accounts/linkedin/:name/profile", accounts.LinkedInProfile)

	// cron jobs
	c := cron.New()
	if err := c.AddFunc(fmt.Sprintf("@every %s", cfg.ScanInterval), duePostsJob.Run); err != nil {
		log.Fatalf("Invalid scan interval: %v", err)
	}
	c.Start()
	defer c.Stop()

	// queue
	queueW := queue.NewQueue(publicationService)
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
		Logger:      asynqLogger{},
	})
	go func() {
		mux := asynq.NewServeMux()
		queueW.Register(mux)

		slog.Info("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info("Server is running", "port", cfg.Port)

	gracefulShutdown(app, server, db)
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func closeDB(db *sql.DB) {
	if db == nil {
		return
	}
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}
	server.Shutdown()

	closeDB(db)
	slog.Info("Server shutdown complete.")
}
