package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/sequencer"
	stg "github.com/odyzzey/zk-accumulator-demo/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIConfig type represents the configuration for the API HTTP server.
// It includes the host, port, the storage and the sequencer that owns the
// contract states.
type APIConfig struct {
	Host      string
	Port      int
	Storage   *stg.Storage
	Sequencer *sequencer.Sequencer
}

// API type represents the API HTTP server of the accumulator.
type API struct {
	router    *chi.Mux
	storage   *stg.Storage
	sequencer *sequencer.Sequencer
	server    *http.Server
	addr      string
}

// New creates a new API instance with the given configuration. The server
// is not listening until Start is called.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Sequencer == nil {
		return nil, fmt.Errorf("missing sequencer instance")
	}
	a := &API{
		storage:   conf.Storage,
		sequencer: conf.Sequencer,
		addr:      net.JoinHostPort(conf.Host, fmt.Sprint(conf.Port)),
	}

	// Initialize router
	a.initRouter()
	return a, nil
}

// Start listens on the configured address and serves the API in the
// background. The listener is opened before returning, so the address is
// known even when the configured port is 0.
func (a *API) Start() error {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.addr, err)
	}
	a.addr = ln.Addr().String()
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "address", a.addr)
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server failed")
		}
	}()
	return nil
}

// Close stops the server, waiting for the running requests up to the
// context deadline.
func (a *API) Close(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Addr returns the address the server listens on.
func (a *API) Addr() string {
	return a.addr
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Debugw("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Debugw("register handler", "endpoint", ProversEndpoint, "method", "GET")
	a.router.Get(ProversEndpoint, a.provers)
	log.Debugw("register handler", "endpoint", ContractsEndpoint, "method", "POST")
	a.router.Post(ContractsEndpoint, a.newContract)
	log.Debugw("register handler", "endpoint", ContractsEndpoint, "method", "GET")
	a.router.Get(ContractsEndpoint, a.contracts)
	log.Debugw("register handler", "endpoint", ContractEndpoint, "method", "GET")
	a.router.Get(ContractEndpoint, a.contract)
	log.Debugw("register handler", "endpoint", ContractVotesEndpoint, "method", "POST")
	a.router.Post(ContractVotesEndpoint, a.newVote)
	log.Debugw("register handler", "endpoint", ContractReceiptsEndpoint, "method", "GET")
	a.router.Get(ContractReceiptsEndpoint, a.receipts)
	log.Debugw("register handler", "endpoint", ContractReceiptsEndpoint, "method", "POST")
	a.router.Post(ContractReceiptsEndpoint, a.submitReceipt)
	log.Debugw("register handler", "endpoint", ContractReceiptEndpoint, "method", "GET")
	a.router.Get(ContractReceiptEndpoint, a.receipt)
	log.Debugw("register handler", "endpoint", MetricsEndpoint, "method", "GET")
	a.router.Handle(MetricsEndpoint, promhttp.Handler())
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))
	a.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrResourceNotFound.With(r.URL.Path).Write(w)
	})

	// Register the API handlers
	a.registerHandlers()
}
