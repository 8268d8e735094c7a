package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"healthchat/pkg/bus"
	"healthchat/pkg/channel"
	"healthchat/pkg/chat"
	"healthchat/pkg/config"
)

const (
	defaultHealthHost    = "127.0.0.1"
	defaultHealthPort    = 18790
	defaultProbeInterval = 30 * time.Second

	// Upper bounds for startup bootstrap and each health probe. A backend
	// that accepts connections but never answers must not hold back the
	// status server or the channels.
	defaultStartupTimeout = 15 * time.Second
	defaultProbeTimeout   = 10 * time.Second
)

// Service exposes one chat client through channel adapters and a status server.
type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	client   *chat.Client
	events   *bus.MessageBus
	handler  *sessionHandler
	channels []channel.Adapter

	startupTimeout time.Duration
	probeTimeout   time.Duration

	mu              sync.RWMutex
	startedAt       time.Time
	backendLastOKAt time.Time
	backendLastErr  string
	channelStates   map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

func NewService(cfg *config.Config, client *chat.Client, events *bus.MessageBus, adapters []channel.Adapter, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if client == nil {
		return nil, errors.New("chat client is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:            cfg,
		log:            log.With("component", "gateway.service"),
		client:         client,
		events:         events,
		handler:        newSessionHandler(client, log),
		channels:       adapters,
		channelStates:  channelStates,
		startupTimeout: defaultStartupTimeout,
		probeTimeout:   defaultProbeTimeout,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if s.events != nil {
		events, unsubscribe := s.events.SubscribeEvents(ctx, 0)
		defer unsubscribe()
		go s.logEvents(events)
	}

	serverErrors := make(chan error, 1)
	go s.runStatusServer(ctx, serverErrors)
	go s.runProbeLoop(ctx)

	s.bootstrap(ctx)

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.handler.Handle)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

// bootstrap opens the shared session before channels start. On timeout the
// client records a connection error and /retry can reconnect later.
func (s *Service) bootstrap(ctx context.Context) {
	bootCtx, cancel := context.WithTimeout(ctx, s.startupTimeout)
	defer cancel()

	s.client.Bootstrap(bootCtx)
	if snap := s.client.Snapshot(); !snap.Connected() {
		s.log.Warn("Chat session not established at startup", "error", snap.LastError)
		return
	}

	// A session implies the bootstrap probe succeeded.
	s.mu.Lock()
	s.backendLastErr = ""
	s.backendLastOKAt = time.Now().UTC()
	s.mu.Unlock()
}

func (s *Service) runProbeLoop(ctx context.Context) {
	if err := s.checkBackendHealth(ctx); err != nil {
		s.log.Warn("Backend is not reachable at startup", "error", err)
	}

	interval := time.Duration(s.cfg.Gateway.ProbeIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.checkBackendHealth(ctx); err != nil {
				s.log.Warn("Backend probe failed", "error", err)
			}
		}
	}
}

func (s *Service) runStatusServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) isReady() bool {
	if !s.client.Snapshot().Connected() {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.channelStates) > 0 {
		anyRunning := false
		for _, state := range s.channelStates {
			if state.Running {
				anyRunning = true
				break
			}
		}
		if !anyRunning {
			return false
		}
	}

	if s.backendLastOKAt.IsZero() {
		return false
	}

	return s.backendLastErr == ""
}

func (s *Service) checkBackendHealth(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	if err := s.client.Backend().Probe(probeCtx); err != nil {
		s.mu.Lock()
		s.backendLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("backend health check failed: %w", err)
	}

	s.mu.Lock()
	s.backendLastErr = ""
	s.backendLastOKAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

// logEvents writes chat lifecycle events until the subscription closes.
func (s *Service) logEvents(events <-chan bus.Event) {
	log := s.log.With("component", "gateway.events")
	for event := range events {
		logEvent(log, event)
	}
}

func logEvent(log *slog.Logger, event bus.Event) {
	args := []any{"event", event.Type}
	if event.SessionID != "" {
		args = append(args, "session_id", event.SessionID)
	}
	if event.MessageID != 0 {
		args = append(args, "message_id", event.MessageID)
	}
	for key, value := range event.Payload {
		args = append(args, key, value)
	}

	switch event.Type {
	case bus.EventSessionFailed, bus.EventExchangeFailed:
		log.Error("Chat event", append(args, "error", event.Error)...)
	case bus.EventMessageAppended:
		log.Debug("Chat event", args...)
	default:
		log.Info("Chat event", args...)
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
