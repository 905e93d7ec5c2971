package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"karaoke-service/internal/catalog"
	"karaoke-service/internal/config"
	"karaoke-service/internal/db"
	"karaoke-service/internal/eventbus"
	"karaoke-service/internal/handlers"
	"karaoke-service/internal/identity"
	"karaoke-service/internal/middleware"
	"karaoke-service/internal/observability"
	"karaoke-service/internal/rabbitmq"
	"karaoke-service/internal/repositories"
	"karaoke-service/internal/session"
	"karaoke-service/internal/telemetry"
	"karaoke-service/internal/ws"
)

const serviceName = "karaoke-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	sessionRepo := repositories.NewSessionRepo(database)
	participantRepo := repositories.NewParticipantRepo(database)
	messageRepo := repositories.NewChatMessageRepo(database)
	songRepo := repositories.NewSongRepo(database)

	songs, err := catalog.LoadEmbedded()
	if err != nil {
		log.Fatalf("failed to load song catalog: %v", err)
	}
	if err := catalog.Seed(ctx, songRepo, songs); err != nil {
		log.Fatalf("failed to seed song catalog: %v", err)
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s reason=%q", rabbitmq.PublisherMode(auditPublisher), rabbitmq.PublisherNoopReason(auditPublisher))
	observability.SetPublisher(auditPublisher)
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)

	bus := eventbus.NewMemory()
	var feedPublisher eventbus.Publisher = bus
	if cfg.AMQPURL != "" {
		bridge, err := newBridge(cfg, bus)
		if err != nil {
			log.Printf("event bridge disabled, using in-process bus: %v", err)
		} else {
			feedPublisher = bridge
			go func() {
				if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("event bridge stopped: %v", err)
				}
			}()
		}
	}

	sessions := eventbus.NewSessionFeed(sessionRepo, feedPublisher)
	participants := eventbus.NewParticipantFeed(participantRepo, feedPublisher)
	messages := eventbus.NewMessageFeed(messageRepo, feedPublisher)

	verifier := identity.NewJWTVerifier(cfg.JWTSecret)
	hub := ws.NewHub()

	gateway := ws.NewKaraokeGateway(hub, verifier, session.Deps{
		Sessions:     sessions,
		Participants: participants,
		Messages:     messages,
		Songs:        songRepo,
		Bus:          bus,
		Audit:        auditEmitter,
		TickPeriod:   cfg.TickPeriod,
	})
	sessionHandler := handlers.NewSessionHandler(sessionRepo, participantRepo, messageRepo, hub)
	songHandler := handlers.NewSongHandler(songRepo)

	router := gin.Default()
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/songs", authMiddleware, songHandler.ListSongs)
	router.GET("/songs/:song_id", authMiddleware, songHandler.GetSong)
	router.GET("/sessions/:room_code", authMiddleware, sessionHandler.GetSession)
	router.GET("/sessions/:room_code/participants", authMiddleware, sessionHandler.ListParticipants)
	router.GET("/sessions/:room_code/messages", authMiddleware, sessionHandler.ListMessages)

	router.GET("/ws/karaoke", gateway.Handle)

	handlers.RegisterDebugRoutes(router, auditEmitter, verifier, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		log.Printf("karaoke-service listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}

func newBridge(cfg config.Config, local *eventbus.Memory) (*eventbus.AMQPBridge, error) {
	consumer, err := rabbitmq.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if rabbitmq.PublisherMode(publisher) != "amqp" {
		consumer.Close()
		return nil, errors.New(rabbitmq.PublisherNoopReason(publisher))
	}
	return eventbus.NewAMQPBridge(publisher, consumer, local), nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "X-Request-ID", "X-Device-ID")
	return cfg
}
