package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/engine"
	"github.com/MikeAA97/IPAM-Prefix-Allocator/pkg/api"

	applogger "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/logger"
)

// LedgerInterface defines the allocation operations the API server depends on.
type LedgerInterface interface {
	Create(ctx context.Context, vpcName string, req engine.CreateRequest) (*engine.Allocation, error)
	DryRun(ctx context.Context, vpcName string, req engine.CreateRequest) (*engine.Allocation, error)
	List(ctx context.Context) []*engine.Allocation
	Move(ctx context.Context, allocationID, newVPCName string) error
	Delete(ctx context.Context, allocationID string) error
	DeleteVPC(ctx context.Context, vpcName string) (int, error)
	CreateVPC(ctx context.Context, vpcName string) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerConfig contains configuration for the API server.
type ServerConfig struct {
	Address     string
	CORSOrigins []string
	APIKey      string
	Version     string
}

// Server represents the HTTP API server with proper lifecycle management.
type Server struct {
	server *http.Server
	ledger LedgerInterface
	pinger Pinger
	logger *applogger.Logger
	config ServerConfig
}

// NewServer creates a new API server instance.
func NewServer(config ServerConfig, ledger LedgerInterface, pinger Pinger, logger *applogger.Logger) *Server {
	return &Server{
		ledger: ledger,
		pinger: pinger,
		logger: logger,
		config: config,
		server: &http.Server{
			Addr:         config.Address,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start starts the HTTP server and begins serving requests.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.Handler()

	s.logger.InfoContext(ctx, "starting API server", "address", s.server.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("api server failed to start: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(100 * time.Millisecond):
		s.logger.InfoContext(ctx, "API server started successfully", "address", s.server.Addr)
		return nil
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}

	s.logger.InfoContext(ctx, "API server shut down successfully")
	return nil
}

// Handler builds the full route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.healthHandler())
	mux.HandleFunc("GET /readyz", s.readyHandler())

	mux.HandleFunc("POST /allocate", s.allocateHandler())
	mux.HandleFunc("GET /allocations", s.listAllocationsHandler())
	mux.HandleFunc("PUT /allocations/{id}", s.moveAllocationHandler())
	mux.HandleFunc("DELETE /allocations/{id}", s.deleteAllocationHandler())
	mux.HandleFunc("POST /vpcs", s.createVPCHandler())
	mux.HandleFunc("DELETE /vpcs/{name}", s.deleteVPCHandler())
	mux.HandleFunc("GET /calculate", s.calculateHandler())

	return Chain(
		RequestID(s.logger),
		Recovery(),
		Logging(),
		CORS(s.config.CORSOrigins),
		APIKey(s.config.APIKey),
	)(mux)
}

func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := api.HealthResponse{
			Status:  "healthy",
			Version: s.config.Version,
		}

		if err := WriteSuccess(w, response); err != nil {
			s.logger.ErrorContext(r.Context(), "failed to encode health response", "error", err)
		}
	}
}

func (s *Server) readyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.pinger.Ping(r.Context()); err != nil {
			_ = WriteJSON(w, http.StatusServiceUnavailable, api.Response[api.HealthResponse]{
				Success: false,
				Data:    api.HealthResponse{Status: "unavailable"},
			})
			return
		}

		_ = WriteSuccess(w, api.HealthResponse{Status: "ready"})
	}
}

func (s *Server) allocateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req api.AllocateRequest
		if err := ParseJSONRequest(r, &req); err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		if err := ValidateAllocateRequest(&req); err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		createReq := engine.CreateRequest{
			Hosts:        req.Hosts,
			PrefixLength: req.PrefixLength,
			Labels: engine.Labels{
				Environment: req.Labels.Environment,
				Region:      req.Labels.Region,
			},
		}

		dryRun := r.URL.Query().Get("dry_run") == "true"

		var alloc *engine.Allocation
		var err error
		if dryRun {
			alloc, err = s.ledger.DryRun(ctx, req.VPC, createReq)
		} else {
			alloc, err = s.ledger.Create(ctx, req.VPC, createReq)
		}
		if err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		info := allocationToInfo(alloc)
		info.DryRun = dryRun

		if dryRun {
			_ = WriteSuccess(w, info)
			return
		}
		_ = WriteCreated(w, info)
	}
}

func (s *Server) listAllocationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := ParseListParams(r)
		if err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		all := s.ledger.List(r.Context())

		filtered := all
		if params.VPC != "" {
			filtered = filtered[:0:0]
			for _, a := range all {
				if a.VPC == params.VPC {
					filtered = append(filtered, a)
				}
			}
		}

		total := len(filtered)
		start := params.Offset
		if start > total {
			start = total
		}
		end := start + params.Limit
		if end > total {
			end = total
		}

		items := make([]api.AllocationInfo, 0, end-start)
		for _, a := range filtered[start:end] {
			items = append(items, allocationToInfo(a))
		}

		_ = WriteSuccess(w, api.AllocationsListResponse{
			TotalCount: total,
			Limit:      params.Limit,
			Offset:     params.Offset,
			Items:      items,
		})
	}
}

func (s *Server) moveAllocationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		var req api.MoveRequest
		if err := ParseJSONRequest(r, &req); err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		if err := s.ledger.Move(r.Context(), id, req.NewVPCName); err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		_ = WriteSuccess(w, map[string]string{"id": id, "vpc": req.NewVPCName})
	}
}

func (s *Server) deleteAllocationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		if err := s.ledger.Delete(r.Context(), id); err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		_ = WriteSuccess(w, api.DeleteResponse{Deleted: true, ID: id})
	}
}

func (s *Server) createVPCHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateVPCRequest
		if err := ParseJSONRequest(r, &req); err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		if err := s.ledger.CreateVPC(r.Context(), req.Name); err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		_ = WriteCreated(w, api.VPCResponse{Name: req.Name})
	}
}

func (s *Server) deleteVPCHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		count, err := s.ledger.DeleteVPC(r.Context(), name)
		if err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		_ = WriteSuccess(w, api.DeleteVPCResponse{Deleted: true, Name: name, DeletedCount: count})
	}
}

func (s *Server) calculateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hosts, prefixLength, err := ParseSizingQuery(r)
		if err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		var sizing engine.Sizing
		if hosts != nil {
			sizing, err = engine.ResolveHosts(*hosts)
		} else {
			sizing, err = engine.ResolvePrefix(*prefixLength)
		}
		if err != nil {
			WriteErrorResponse(w, r, err)
			return
		}

		_ = WriteSuccess(w, api.CalculateResponse{
			RequestedHosts:  hosts,
			RequestedPrefix: prefixLength,
			PrimaryPrefix:   sizing.PrimaryPrefix,
			CGNATPrefix:     sizing.CGNATPrefix,
			UsablePrimary:   engine.UsableIPs(sizing.PrimaryPrefix),
			UsableCGNAT:     engine.UsableIPs(sizing.CGNATPrefix),
		})
	}
}

func allocationToInfo(a *engine.Allocation) api.AllocationInfo {
	return api.AllocationInfo{
		AllocationID:      a.ID,
		VPC:               a.VPC,
		PrimaryCIDR:       a.Primary.String(),
		CGNATCIDR:         a.CGNAT.String(),
		PrimarySubnetSize: int(a.Primary.Size()),
		CGNATSubnetSize:   int(a.CGNAT.Size()),
		UsablePrimary:     a.Primary.UsableIPs(),
		UsableCGNAT:       a.CGNAT.UsableIPs(),
		RequestedHosts:    a.RequestedHosts,
		RequestedPrefix:   a.RequestedPrefix,
		Labels: api.Labels{
			Environment: a.Labels.Environment,
			Region:      a.Labels.Region,
		},
		RequestID: a.RequestID,
		CreatedAt: a.CreatedAt,
	}
}
