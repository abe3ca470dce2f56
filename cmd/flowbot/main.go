package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/engine"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/flowcache"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/intent"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/notify"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/scheduler"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/store"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/util"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/wire"
)

// Config holds environment configuration.
type Config struct {
	Addr          string
	FlowsFile     string
	IntentConfig  string
	AMQPURL       string
	AMQPExchange  string
	FlowTimeout   time.Duration
	IdleThreshold time.Duration
	CacheTTL      time.Duration
	SweepEnabled  bool
}

func main() {
	initializeLogger()
	config := loadEnvironmentConfig()

	detector, err := buildDetector(config)
	if err != nil {
		slog.Error("Failed to load intent configuration", "error", err)
		os.Exit(1)
	}

	st := store.NewInMemoryStore()
	if config.FlowsFile != "" {
		if err := seedFlowsFromFile(st, config.FlowsFile); err != nil {
			slog.Error("Failed to seed flows", "file", config.FlowsFile, "error", err)
			os.Exit(1)
		}
	}

	cache := flowcache.New(st.FetchFlows, flowcache.WithTTL(config.CacheTTL))
	eng := engine.New(cache, detector, engine.WithFlowTimeout(config.FlowTimeout))

	publisher := buildPublisher(config)
	defer publisher.Close()

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if config.SweepEnabled {
		sweep := scheduler.NewInactivitySweep(eng, st, func(ctx context.Context, entry store.ContextEntry, resp *models.BotResponse) {
			// Standalone mode has no outbound channel; log the nudge and
			// publish it so a downstream consumer can deliver it.
			slog.Info("Inactivity nudge generated", "conversationID", entry.ConversationID, "messages", len(resp.Messages))
			publishResponseEvents(ctx, publisher, entry.TenantID, entry.ConversationID, resp)
		}, config.IdleThreshold)
		if err := sched.AddJob(scheduler.SweepSchedule, func() { sweep.Run(context.Background()) }); err != nil {
			slog.Error("Failed to schedule inactivity sweep", "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:    config.Addr,
		Handler: newHandler(eng, st, publisher),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("flowbot listening", "addr", config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}

// initializeLogger sets up structured logging with the level from LOG_LEVEL.
func initializeLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and an
// optional .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		Addr:          os.Getenv("FLOWBOT_ADDR"),
		FlowsFile:     os.Getenv("FLOWS_FILE"),
		IntentConfig:  os.Getenv("INTENT_CONFIG"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		AMQPExchange:  os.Getenv("AMQP_EXCHANGE"),
		FlowTimeout:   util.ParseDurationEnv("FLOW_TIMEOUT", 0),
		IdleThreshold: util.ParseDurationEnv("IDLE_THRESHOLD", 0),
		CacheTTL:      util.ParseDurationEnv("FLOW_CACHE_TTL", 0),
		SweepEnabled:  util.ParseBoolEnv("INACTIVITY_SWEEP", true),
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	return config
}

func buildDetector(config Config) (*intent.Detector, error) {
	if config.IntentConfig == "" {
		return intent.NewDetector(intent.DefaultConfig()), nil
	}
	cfg, err := intent.LoadConfig(config.IntentConfig)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded intent configuration", "file", config.IntentConfig, "intents", len(cfg.Intents))
	return intent.NewDetector(cfg), nil
}

// seedFlowsFromFile loads a JSON array of flows and seeds them per tenant.
func seedFlowsFromFile(st *store.InMemoryStore, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var flows []models.ChatbotFlow
	if err := json.Unmarshal(data, &flows); err != nil {
		return err
	}
	byTenant := make(map[string][]models.ChatbotFlow)
	for _, flow := range flows {
		byTenant[flow.TenantID] = append(byTenant[flow.TenantID], flow)
	}
	for tenantID, tenantFlows := range byTenant {
		st.SeedFlows(tenantID, tenantFlows)
	}
	slog.Info("Seeded flows", "file", path, "flows", len(flows), "tenants", len(byTenant))
	return nil
}

func buildPublisher(config Config) notify.Publisher {
	if config.AMQPURL == "" {
		slog.Debug("AMQP_URL not set, notifications disabled")
		return notify.NopPublisher{}
	}
	publisher, err := notify.New(config.AMQPURL, config.AMQPExchange)
	if err != nil {
		slog.Error("Failed to connect notification publisher, continuing without", "error", err)
		return notify.NopPublisher{}
	}
	return publisher
}

// messageResponse is the HTTP reply body for POST /v1/messages.
type messageResponse struct {
	Messages        []wire.OutboundMessage `json:"messages"`
	Actions         []models.BotAction     `json:"actions,omitempty"`
	TransferToHuman bool                   `json:"transfer_to_human,omitempty"`
	TransferReason  string                 `json:"transfer_reason,omitempty"`
}

func newHandler(eng *engine.Engine, st *store.InMemoryStore, publisher notify.Publisher) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var msg models.BotIncomingMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if msg.Context == nil {
			record, err := st.GetContext(r.Context(), msg.ConversationID)
			if err != nil {
				slog.Error("Loading context failed", "conversationID", msg.ConversationID, "error", err)
				http.Error(w, "context load failed", http.StatusInternalServerError)
				return
			}
			msg.Context = record
		}

		resp, err := eng.ProcessMessage(r.Context(), msg)
		if err != nil {
			slog.Error("Message processing failed", "conversationID", msg.ConversationID, "error", err)
			http.Error(w, "processing failed", http.StatusInternalServerError)
			return
		}

		dispatchActions(r.Context(), publisher, msg, resp)

		if err := st.SaveContextEntry(store.ContextEntry{
			TenantID:       msg.TenantID,
			ConversationID: msg.ConversationID,
			Contact:        msg.Contact,
			Record:         resp.ContextUpdates,
		}); err != nil {
			slog.Error("Saving context failed", "conversationID", msg.ConversationID, "error", err)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(messageResponse{
			Messages:        wire.BuildAll(resp.Messages),
			Actions:         resp.Actions,
			TransferToHuman: resp.TransferToHuman,
			TransferReason:  resp.TransferReason,
		}); err != nil {
			slog.Error("Encoding response failed", "conversationID", msg.ConversationID, "error", err)
		}
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// dispatchActions publishes broker events for the engine's side-effect
// actions. Tag and task actions are forwarded as events; a platform
// integration would also apply them to its own records.
func dispatchActions(ctx context.Context, publisher notify.Publisher, msg models.BotIncomingMessage, resp *models.BotResponse) {
	for _, action := range resp.Actions {
		key := routingKeyFor(action.Type)
		if key == "" {
			slog.Debug("No broker event for action", "type", action.Type)
			continue
		}
		env := notify.Envelope{
			TenantID:       msg.TenantID,
			ConversationID: msg.ConversationID,
			Data:           action.Payload,
		}
		if err := publisher.Publish(ctx, key, env); err != nil {
			slog.Error("Publishing action event failed", "type", action.Type, "error", err)
		}
	}
	if resp.TransferToHuman {
		env := notify.Envelope{
			TenantID:       msg.TenantID,
			ConversationID: msg.ConversationID,
			Data:           map[string]any{"reason": resp.TransferReason},
		}
		if err := publisher.Publish(ctx, notify.KeyHandoff, env); err != nil {
			slog.Error("Publishing handoff event failed", "error", err)
		}
	}
}

func routingKeyFor(actionType models.ActionType) string {
	switch actionType {
	case models.ActionSendNotification:
		return notify.KeyNotification
	case models.ActionAddTag, models.ActionRemoveTag:
		return notify.KeyTagChanged
	case models.ActionCreateTask:
		return notify.KeyTaskCreated
	default:
		return ""
	}
}

// publishResponseEvents forwards sweep-generated responses to the broker.
func publishResponseEvents(ctx context.Context, publisher notify.Publisher, tenantID, conversationID string, resp *models.BotResponse) {
	env := notify.Envelope{
		TenantID:       tenantID,
		ConversationID: conversationID,
		Data:           map[string]any{"messages": wire.BuildAll(resp.Messages)},
	}
	if err := publisher.Publish(ctx, notify.KeyNotification, env); err != nil {
		slog.Error("Publishing inactivity nudge failed", "error", err)
	}
}
