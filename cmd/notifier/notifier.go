package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	notifier "github.com/branchpulse/notifier"
	"github.com/branchpulse/notifier/api"
	"github.com/branchpulse/notifier/authmanager"
	"github.com/branchpulse/notifier/config"
	"github.com/branchpulse/notifier/db"
	"github.com/branchpulse/notifier/migrator"
	"github.com/branchpulse/notifier/server"
)

// Service is the assembled notification service: registry, event
// store, dispatcher, in-app notification persistence and the HTTP
// surface on top of them.
type Service interface {
	Dispatcher() notifier.Dispatcher
	Registry() notifier.ConnectionRegistry
	EventStore() notifier.EventStore
	NotificationService() notifier.NotificationService
	// Start runs migrations, background loops and the API server.
	// It blocks until the API server stops.
	Start() error
}

type service struct {
	ctx                 context.Context
	config              *config.Configuration
	postgres            db.Postgres
	migrator            migrator.NotifierMigrator
	api                 api.Api
	registry            notifier.ConnectionRegistry
	eventStore          notifier.EventStore
	dispatcher          notifier.Dispatcher
	notificationService notifier.NotificationService
	longPollBridge      *notifier.LongPollBridge
}

func New(ctx context.Context, configuration *config.Configuration) (Service, error) {
	zerolog.SetGlobalLevel(configuration.LogLevel)

	postgres := db.NewPostgres(ctx, configuration)
	if err := postgres.Connect(); err != nil {
		log.Error().Err(err).Msg(notifier.MsgFailedToConnectToPostgresDbMsg)
		return nil, err
	}
	dbConnector := db.NewDbConnector(postgres)

	notificationRepository := notifier.NewNotificationRepository(dbConnector, configuration.DBSchema)
	notificationService := notifier.NewNotificationService(notificationRepository)

	redisClient := notifier.NewRedisClient(configuration)
	retention := time.Duration(configuration.EventRetentionMinutes) * time.Minute
	primaryStore := notifier.NewRedisEventStore(redisClient, configuration.ApplicationName, retention, configuration.MaxEventsPerBucket)
	fallbackStore := notifier.NewMemoryEventStore(retention, configuration.MaxEventsPerBucket)
	eventStore := notifier.NewFailoverEventStore(primaryStore, fallbackStore,
		time.Duration(configuration.StoreFailoverCooldownSeconds)*time.Second)

	registry := notifier.NewConnectionRegistry(notifier.RegistrySettings{
		IdleThreshold:       time.Duration(configuration.IdleThresholdSeconds) * time.Second,
		StaleThreshold:      time.Duration(configuration.StaleThresholdSeconds) * time.Second,
		DisconnectThreshold: time.Duration(configuration.DisconnectThresholdSeconds) * time.Second,
		SweepInterval:       time.Duration(configuration.HealthSweepIntervalSeconds) * time.Second,
		EventBufferSize:     configuration.ConnectionEventBufferSize,
	})

	longPollBridge, err := notifier.NewLongPollBridge(configuration.LongPollEventBufferSize, configuration.LongPollEventTTLSeconds)
	if err != nil {
		return nil, err
	}

	publishLimiter := notifier.NewRateLimiter(configuration.PublishRateLimitPerMinute, time.Minute)
	connectionLimiter := notifier.NewRateLimiter(configuration.ConnectionRateLimitPerMinute, time.Minute)

	dispatcher := notifier.NewDispatcher(registry, eventStore, publishLimiter, longPollBridge, notificationService)

	authManager := authmanager.NewAuthManager(configuration, notifier.NewRestyClient(ctx, configuration))
	streamServer := server.NewEventStreamServer(registry,
		time.Duration(configuration.HeartbeatIntervalSeconds)*time.Second, connectionLimiter)

	ginApi := api.NewAPI(configuration, authManager, registry, eventStore, dispatcher,
		notificationService, streamServer, longPollBridge)

	return &service{
		ctx:                 ctx,
		config:              configuration,
		postgres:            postgres,
		migrator:            migrator.NewNotifierMigrator(),
		api:                 ginApi,
		registry:            registry,
		eventStore:          eventStore,
		dispatcher:          dispatcher,
		notificationService: notificationService,
		longPollBridge:      longPollBridge,
	}, nil
}

func (s *service) Dispatcher() notifier.Dispatcher {
	return s.dispatcher
}

func (s *service) Registry() notifier.ConnectionRegistry {
	return s.registry
}

func (s *service) EventStore() notifier.EventStore {
	return s.eventStore
}

func (s *service) NotificationService() notifier.NotificationService {
	return s.notificationService
}

func (s *service) migrateUp(ctx context.Context) error {
	sqlConn, err := s.postgres.GetDbConnection()
	if err != nil {
		return err
	}
	return s.migrator.Run(ctx, sqlConn, s.config.DBSchema)
}

func (s *service) Start() error {
	if err := s.migrateUp(s.ctx); err != nil {
		log.Error().Err(err).Msg("migrate notifier schema failed")
		return err
	}

	s.registry.StartHealthSweep(s.ctx)
	s.eventStore.StartPruneLoop(s.ctx, time.Duration(s.config.PruneIntervalSeconds)*time.Second)
	defer s.longPollBridge.Shutdown()

	err := s.api.Run()
	if err != nil {
		log.Error().Err(err).Msg(notifier.ApiFailedToStartMsg)
		return err
	}

	return nil
}
