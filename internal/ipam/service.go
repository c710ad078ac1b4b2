package ipam

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/api"
	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/config"
	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/db"
	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/engine"
	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/events"

	applogger "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/logger"
)

// APIServerInterface defines the interface for API server operations
type APIServerInterface interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Service coordinates all IPAM components and manages their lifecycle.
type Service struct {
	config    *config.Config
	version   string
	logger    *applogger.Logger
	store     db.Store
	bus       *events.AuditBus
	ledger    *engine.Ledger
	apiServer APIServerInterface

	ctx    context.Context
	cancel context.CancelFunc

	signalChan            chan os.Signal
	shutdownWg            sync.WaitGroup
	isRunning             bool
	mu                    sync.RWMutex
	disableSignalHandling bool // For testing
}

// NewService creates a new Service instance and initializes all components in
// proper dependency order.
func NewService(cfg *config.Config, version string, logger *applogger.Logger) (*Service, error) {
	ctx, cancel := context.WithCancel(context.Background())

	service := &Service{
		config:     cfg,
		version:    version,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		signalChan: make(chan os.Signal, 1),
	}

	if err := service.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize service components: %w", err)
	}

	return service, nil
}

// initializeComponents creates and wires all components bottom-up: store,
// allocators, coordinator, event bus, ledger, API server.
func (s *Service) initializeComponents() error {
	s.logger.Info("initializing service components")

	baseStore, err := db.NewStore(&db.Config{
		Path:            s.config.DB.Path,
		MaxOpenConns:    s.config.DB.MaxOpenConns,
		MaxIdleConns:    s.config.DB.MaxIdleConns,
		ConnMaxLifetime: s.config.DB.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database store: %w", err)
	}
	s.store = baseStore

	if s.config.CircuitBreaker.Enabled {
		s.store = db.NewCircuitBreakerStore(baseStore, &db.CircuitBreakerConfig{
			FailureThreshold: s.config.CircuitBreaker.FailureThreshold,
			ResetTimeout:     s.config.CircuitBreaker.ResetTimeout,
		}, s.logger.Unwrap())
		s.logger.Debug("database circuit breaker enabled")
	}

	primaryPool, err := s.config.PrimaryPool()
	if err != nil {
		return fmt.Errorf("invalid primary pool configuration: %w", err)
	}
	cgnatPool, err := s.config.CGNATPool()
	if err != nil {
		return fmt.Errorf("invalid cgnat pool configuration: %w", err)
	}

	coordinator := engine.NewCoordinator(
		engine.NewAllocator(primaryPool),
		engine.NewAllocator(cgnatPool),
		s.logger.Unwrap())

	s.bus = events.NewAuditBus(s.logger.Unwrap())
	if err := events.RegisterAuditLogger(s.bus, s.logger.Unwrap(),
		engine.EventAllocationCreated,
		engine.EventAllocationMoved,
		engine.EventAllocationDeleted,
		engine.EventVPCDeleted,
	); err != nil {
		return fmt.Errorf("failed to register audit logger: %w", err)
	}

	s.ledger = engine.NewLedger(coordinator, db.NewLedgerRepository(s.store), s.bus, s.logger.Unwrap())

	s.apiServer = api.NewServer(api.ServerConfig{
		Address:     s.config.API.ListenAddr,
		CORSOrigins: s.config.API.CORSOrigins,
		APIKey:      s.config.API.APIKey,
		Version:     s.version,
	}, s.ledger, s.store, s.logger)

	s.logger.Info("service components initialized successfully")
	return nil
}

// Start restores ledger state from the store and brings up the API server.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("service is already running")
	}

	s.logger.InfoContext(ctx, "starting ipam service")

	if !s.disableSignalHandling {
		s.setupSignalHandling()
	}

	// Rebuild the free sets from live allocations before serving traffic
	if err := s.ledger.Restore(s.ctx); err != nil {
		return fmt.Errorf("failed to restore ledger state: %w", err)
	}

	if err := s.apiServer.Start(s.ctx); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	s.isRunning = true
	s.logger.InfoContext(ctx, "ipam service started successfully")
	return nil
}

// setupSignalHandling configures signal handling for graceful shutdown
func (s *Service) setupSignalHandling() {
	signal.Notify(s.signalChan, syscall.SIGINT, syscall.SIGTERM)

	s.shutdownWg.Add(1)
	go s.handleSignals()
}

// handleSignals processes shutdown signals and initiates graceful shutdown
func (s *Service) handleSignals() {
	defer s.shutdownWg.Done()

	select {
	case sig := <-s.signalChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()

		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Error("error during graceful shutdown", "error", err)
		}

	case <-s.ctx.Done():
		s.logger.Debug("signal handler exiting due to service context cancellation")
	}
}

// WaitForShutdown blocks until the service receives a shutdown signal or its
// context is cancelled.
func (s *Service) WaitForShutdown() {
	s.logger.Info("service running, waiting for shutdown signal")
	s.shutdownWg.Wait()
	s.logger.Info("service shutdown complete")
}

// Stop gracefully shuts down all components in reverse dependency order.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		s.logger.Warn("service is not running")
		return nil
	}

	s.logger.Info("stopping ipam service")

	if !s.disableSignalHandling {
		signal.Stop(s.signalChan)
	}

	var lastErr error

	if s.apiServer != nil {
		if err := s.apiServer.Stop(ctx); err != nil {
			s.logger.Error("failed to stop API server", "error", err)
			lastErr = err
		}
	}

	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.logger.Error("failed to close event bus", "error", err)
			lastErr = err
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close database store", "error", err)
			lastErr = err
		}
	}

	s.cancel()
	s.isRunning = false

	s.logger.Info("ipam service stopped")
	return lastErr
}

func (s *Service) shutdownTimeout() time.Duration {
	if s.config != nil && s.config.Service.ShutdownTimeout > 0 {
		return s.config.Service.ShutdownTimeout
	}
	return 30 * time.Second
}
