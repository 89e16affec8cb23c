package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-sqlnotebook-be/internal/config"
	"ai-sqlnotebook-be/internal/controller"
	"ai-sqlnotebook-be/internal/handler"
	"ai-sqlnotebook-be/internal/pkg/logger"
	"ai-sqlnotebook-be/internal/repository/memory"
	"ai-sqlnotebook-be/internal/repository/unitofwork"
	"ai-sqlnotebook-be/internal/service"
	"ai-sqlnotebook-be/internal/websocket"
	"ai-sqlnotebook-be/pkg/llm"
	"ai-sqlnotebook-be/pkg/llm/factory"
	"ai-sqlnotebook-be/pkg/querystream"
	"ai-sqlnotebook-be/pkg/segment"

	pktNats "ai-sqlnotebook-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	NotebookController      controller.INotebookController
	NotebookEntryController controller.INotebookEntryController

	// Background Services (Exposed for main.go to run)
	TitleService service.ITitleService

	// WebSockets
	StreamHandler *handler.StreamHandler
	WebSocketHub  *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

// Close releases connections opened by NewContainer.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	grammar, err := segment.NewGrammar(segment.ParseTypes(cfg.Query.OutputTypes)...)
	if err != nil {
		log.Fatalf("[FATAL] Invalid OUTPUT_TYPES %q: %v", cfg.Query.OutputTypes, err)
	}
	log.Printf("[INFO] Segment types (scan order): %v", grammar.Types())

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		llm.WithTemperature(0.2),
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	queryClient := querystream.NewClient(
		cfg.Query.BackendURL,
		time.Duration(cfg.Query.HeaderTimeoutSeconds)*time.Second,
	)

	submissions := memory.NewSubmissionRepository(time.Duration(cfg.Query.SubmissionTTLMinutes) * time.Minute)

	// 4. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Websocket fan-out stays local", err)
		rdb.Close()
		rdb = nil
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// A nil *Publisher must not become a non-nil interface.
	var eventPublisher service.EventPublisher
	if natsPub != nil {
		eventPublisher = natsPub
	}

	// 5. Services
	publisherService := service.NewPublisherService(cfg.Query.TitleTopicName, pubSub)
	titleService := service.NewTitleService(
		pubSub,
		cfg.Query.TitleTopicName,
		uowFactory,
		llmProvider,
		wsHub,
		eventPublisher,
		sysLogger,
	)

	notebookService := service.NewNotebookService(uowFactory, wsHub)
	notebookEntryService := service.NewNotebookEntryService(
		uowFactory,
		queryClient,
		grammar,
		submissions,
		wsHub,
		eventPublisher,
		publisherService,
		sysLogger,
		service.NotebookEntryOptions{
			HistoryWindow:  cfg.Query.HistoryWindow,
			ReadBufferSize: cfg.Query.ReadBufferSize,
		},
	)

	// 6. Controllers
	c := &Container{
		NotebookController:      controller.NewNotebookController(notebookService),
		NotebookEntryController: controller.NewNotebookEntryController(notebookEntryService),
		TitleService:            titleService,
		StreamHandler:           handler.NewStreamHandler(wsHub, submissions, wsLogger),
		WebSocketHub:            wsHub,
		Logger:                  sysLogger,
	}

	c.closers = append(c.closers, func() { _ = sysLogger.Sync() }, func() { _ = wsLogger.Sync() })
	c.closers = append(c.closers, func() { _ = pubSub.Close() })
	c.closers = append(c.closers, natsPub.Close)
	if rdb != nil {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}
	c.closers = append(c.closers, wsHub.Close)

	return c
}
