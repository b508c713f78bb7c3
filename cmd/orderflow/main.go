package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	config "github.com/davicafu/orderflow/internal/config"
	orderApp "github.com/davicafu/orderflow/internal/order/application"
	orderEvents "github.com/davicafu/orderflow/internal/order/infra/inbound/events"
	orderHttp "github.com/davicafu/orderflow/internal/order/infra/inbound/http"
	orderAnalytics "github.com/davicafu/orderflow/internal/order/infra/outbound/analytics/clickhouse"
	orderCache "github.com/davicafu/orderflow/internal/order/infra/outbound/cache"
	readModelMongo "github.com/davicafu/orderflow/internal/order/infra/outbound/db/mongodb"
	eventStorePostgres "github.com/davicafu/orderflow/internal/order/infra/outbound/db/postgres"
	eventStoreSQLite "github.com/davicafu/orderflow/internal/order/infra/outbound/db/sqlite"
	"github.com/davicafu/orderflow/internal/order/infra/outbound/eventsourced"
	"github.com/davicafu/orderflow/internal/order/infra/outbound/projections"
	infraEvents "github.com/davicafu/orderflow/internal/shared/infra/events"
	infraRelayer "github.com/davicafu/orderflow/internal/shared/infra/relayer"
	"github.com/davicafu/orderflow/internal/shared/infra/subscriber"
	"github.com/davicafu/orderflow/pkg/logger"
	sharedDomain "github.com/davicafu/orderflow/shared/domain"
	sharedBus "github.com/davicafu/orderflow/shared/platform/bus"
	sharedCache "github.com/davicafu/orderflow/shared/platform/cache"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// eventStore agrupa las tres caras del almacén de eventos que expone cada
// adaptador de base de datos.
type eventStore interface {
	sharedDomain.EventStore
	sharedDomain.OutboxStore
	sharedDomain.CheckpointStore
}

// ---------------- Main ----------------
func main() {
	logger.Init()
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	// ---------------- Event store ----------------
	var store eventStore
	switch cfg.EventStoreBackend {
	case "postgres":
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping Postgres", zap.Error(err))
		}
		if err := eventStorePostgres.InitPostgres(db); err != nil {
			log.Fatal("failed to initialize Postgres schema", zap.Error(err))
		}
		store = eventStorePostgres.NewEventStorePostgres(db)
		log.Info("✅ Event store sobre Postgres")

	default:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		defer db.Close()
		if err := eventStoreSQLite.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite schema", zap.Error(err))
		}
		store = eventStoreSQLite.NewEventStoreSQLite(db)
		log.Info("✅ Event store sobre SQLite", zap.String("path", cfg.SQLitePath))
	}

	repo := eventsourced.NewOrderRepository(store)

	// ---------------- Read models ----------------
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())

	docStore, err := readModelMongo.NewReadModelStoreMongo(ctx, mongoClient, cfg.MongoDB)
	if err != nil {
		log.Fatal("failed to initialize read model store", zap.Error(err))
	}

	// ---------------- Cache ----------------
	var cacheInstance sharedCache.Cache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		cacheInstance = orderCache.NewInMemoryCache(time.Minute, 3*time.Minute)
	} else {
		cacheInstance = orderCache.NewRedisCache(rdb, time.Minute)
		log.Info("✅ Redis conectado, cache habilitado")
	}

	// --------------- Servicios --------------
	orderService := orderApp.NewOrderService(repo, log)
	orderQueries := orderApp.NewOrderQueries(docStore, cacheInstance, log)

	// ---------------- Events ----------------
	var publisher sharedBus.EventPublisher
	orderConsumer := orderEvents.NewOrderConsumer(orderService, log)

	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos")

		// Sin topic fijo: el relayer deriva el topic de cada mensaje.
		writer := &kafka.Writer{
			Addr:     kafka.TCP(cfg.KafkaBrokers...),
			Balancer: &kafka.Hash{},
		}
		defer writer.Close()
		publisher = infraEvents.NewKafkaPublisher(writer, log)

		for _, topic := range cfg.KafkaInboundTopics {
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:  cfg.KafkaBrokers,
				Topic:    topic,
				GroupID:  cfg.KafkaGroupID,
				MinBytes: 10e3, // 10KB
				MaxBytes: 10e6, // 10MB
			})
			defer reader.Close()

			adapter := infraEvents.NewConsumerAdapter(reader, orderConsumer, log)
			adapter.Start(ctx)
		}
	} else {
		log.Info("⚡️Usando bus de eventos en memoria (canales de Go)")

		bus := infraEvents.NewInMemoryEventBus()
		publisher = bus

		for _, topic := range cfg.KafkaInboundTopics {
			log.Info("🎧 Iniciando listener en memoria", zap.String("topic", topic))
			orderEvents.BackgroundConsumerChan(ctx, bus.Subscribe(topic, 10), orderConsumer)
		}
	}

	// ------------ Outbox relayer ------------
	outboxWorker := infraRelayer.NewOutboxWorker(store, publisher, cfg.OutboxPeriod, cfg.OutboxLimit, log)
	go outboxWorker.Start(ctx)

	// ------------ Proyecciones --------------
	handlers := []subscriber.Handler{
		projections.NewSummaryProjector(docStore, log),
		projections.NewDetailsProjector(docStore, log),
	}

	if cfg.ClickHouseAddr != "" {
		analyticsRepo, err := orderAnalytics.NewOrderAnalyticsRepo(cfg.ClickHouseAddr, cfg.ClickHouseDB)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, analítica deshabilitada", zap.Error(err))
		} else if err := analyticsRepo.InitSchema(); err != nil {
			log.Warn("⚠️ No se pudo crear el esquema de analítica", zap.Error(err))
		} else {
			handlers = append(handlers, analyticsRepo)
			log.Info("✅ ClickHouse conectado, analítica habilitada")
		}
	}

	subscription := subscriber.NewSubscription(
		"order-projections",
		store,
		store,
		handlers,
		subscriber.Options{
			PollInterval: cfg.SubscriberPoll,
			BatchSize:    cfg.SubscriberBatch,
		},
		log,
	)
	go func() {
		if err := subscription.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("📡 Suscripción de proyecciones detenida", zap.Error(err))
		}
	}()

	// ---------------- HTTP ----------------
	orderHandler := orderHttp.NewOrderHandler(orderService, orderQueries)
	router := gin.Default()
	orderHttp.RegisterOrderRoutes(router, orderHandler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Info("🚀 Server running",
		zap.String("url", "http://localhost:"+cfg.HTTPPort),
	)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}
