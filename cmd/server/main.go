package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"meatline/internal/auth"
	cartcache "meatline/internal/cart/cache"
	cartrepo "meatline/internal/cart/repository"
	cartservice "meatline/internal/cart/service"
	"meatline/internal/catalog"
	checkoutpub "meatline/internal/checkout/publisher"
	checkoutrepo "meatline/internal/checkout/repository"
	checkoutservice "meatline/internal/checkout/service"
	"meatline/internal/config"
	"meatline/internal/httpapi"
	"meatline/internal/orderapi"
	"meatline/internal/orderfeed"
	"meatline/internal/profile"
)

func main() {
	log.Println("meatline server starting...")

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Mongo holds the carts
	mongoCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	mongoDB, err := cartrepo.ConnectMongoDB(mongoCtx, cfg.MongoURI, cfg.MongoDatabase)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Printf("mongo disconnect: %v", err)
		}
	}()

	cartRepository := cartrepo.NewMongoRepository(mongoDB)
	if err := cartRepository.CreateIndexes(ctx); err != nil {
		log.Fatalf("Failed to create cart indexes: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	cartService := cartservice.NewCartService(cartRepository, cartcache.NewRedisCache(redisClient))

	// Postgres holds checkout sessions, the order feed and the accounts
	creds := &checkoutrepo.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.PostgresMigrationsPath,
	}
	checkoutRepository, err := checkoutrepo.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer checkoutRepository.Close()

	if err := checkoutRepository.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	orderFeedRepository := orderfeed.NewRepository(checkoutRepository.DB())
	profileRepository := profile.NewRepository(checkoutRepository.DB())
	authService := auth.NewService(profileRepository, []byte(cfg.JWTSecret))

	// SQLite holds the product catalog
	catalogRepository, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatalf("Failed to open catalog database: %v", err)
	}
	defer catalogRepository.Close()
	if err := catalogRepository.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		log.Fatalf("Failed to run catalog migrations: %v", err)
	}

	orderClient := orderapi.NewClient(cfg.OrderAPIBaseURL, cfg.OrderAPITimeout)
	checkoutService := checkoutservice.NewCheckoutService(checkoutRepository, cartService, orderClient)

	// Outbox poller publishes completed checkouts, the consumer feeds the
	// order history read model from them.
	poller := checkoutpub.NewOutboxPoller(checkoutRepository, cfg.KafkaBrokers...)
	defer poller.Close()
	go poller.Run(ctx)

	feedConsumer := orderfeed.NewConsumer(orderFeedRepository, checkoutpub.Topic, cfg.KafkaBrokers...)
	defer feedConsumer.Close()
	go feedConsumer.Run(ctx)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
		LoginRPS:       5,
		LoginBurst:     10,
	}, authService, httpapi.Handlers{
		Cart:     httpapi.NewCartHandler(cartService, catalogRepository, cfg.RequestTimeout),
		Catalog:  httpapi.NewCatalogHandler(catalogRepository, cfg.RequestTimeout),
		Checkout: httpapi.NewCheckoutHandler(checkoutService, cfg.RequestTimeout),
		Orders:   httpapi.NewOrdersHandler(orderFeedRepository, cfg.RequestTimeout),
		Auth:     httpapi.NewAuthHandler(authService, cfg.RequestTimeout),
		Profile:  httpapi.NewProfileHandler(profileRepository, cfg.RequestTimeout),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "meatline"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down server...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
