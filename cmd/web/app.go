package main

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/AdamBeresnev/arena-hub/internal/cache"
	"github.com/AdamBeresnev/arena-hub/internal/config"
	"github.com/AdamBeresnev/arena-hub/internal/live"
	"github.com/AdamBeresnev/arena-hub/internal/predict"
	"github.com/AdamBeresnev/arena-hub/internal/service"
	"github.com/AdamBeresnev/arena-hub/internal/store"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type application struct {
	cfg            *config.Config
	sessionManager *scs.SessionManager

	userStore  *store.UserStore
	users      *service.UserService
	events     *service.EventService
	matches    *service.MatchService
	matchmaker *service.Matchmaker
	eventCache *cache.EventCache

	broker *live.Broker
	hub    *live.Hub
}

func newApplication(cfg *config.Config, database *sqlx.DB, sessionManager *scs.SessionManager) (*application, error) {
	predictor, err := predict.New(cfg.Predictor.Backend, cfg.OllamaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to set up predictor: %w", err)
	}

	userStore := store.NewUserStore(database)
	eventStore := store.NewEventStore(database)
	matchStore := store.NewMatchStore(database)

	broker := live.NewBroker(func(ctx context.Context, eventID uuid.UUID) ([]bracket.Match, error) {
		return matchStore.GetMatches(ctx, eventID.String())
	})
	eventCache := cache.NewEventCache(cfg.EventCacheTTL())

	return &application{
		cfg:            cfg,
		sessionManager: sessionManager,
		userStore:      userStore,
		users:          service.NewUserService(database, userStore),
		events:         service.NewEventService(database, eventStore, eventCache, broker),
		matches:        service.NewMatchService(database, matchStore, broker, cfg.Matchmaking.ClearBatchSize),
		matchmaker: service.NewMatchmaker(database, eventStore, matchStore,
			service.WithPredictor(predictor),
			service.WithMatchFeed(broker),
			service.WithPredictionWorkers(cfg.Matchmaking.PredictionWorkers),
		),
		eventCache: eventCache,
		broker:     broker,
		hub:        live.NewHub(broker, cfg.Server.AllowedOrigins),
	}, nil
}
