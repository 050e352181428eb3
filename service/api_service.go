package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/odyzzey/zk-accumulator-demo/api"
	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/sequencer"
	"github.com/odyzzey/zk-accumulator-demo/storage"
)

// shutdownTimeout bounds the time the API waits for running requests on Stop.
const shutdownTimeout = 5 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	storage   *storage.Storage
	sequencer *sequencer.Sequencer
	api       *api.API
	mu        sync.Mutex
	host      string
	port      int
}

// NewAPI creates a new APIService instance. The storage and the sequencer
// are owned by the caller and are not closed by Stop.
func NewAPI(stg *storage.Storage, seq *sequencer.Sequencer, host string, port int) *APIService {
	return &APIService{
		storage:   stg,
		sequencer: seq,
		host:      host,
		port:      port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(_ context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.api != nil {
		return fmt.Errorf("service already running")
	}

	a, err := api.New(&api.APIConfig{
		Host:      as.host,
		Port:      as.port,
		Storage:   as.storage,
		Sequencer: as.sequencer,
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	if err := a.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	as.api = a
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.api == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := as.api.Close(ctx); err != nil {
		log.Warnw("API server shutdown", "error", err.Error())
	}
	as.api = nil
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}

// Addr returns the address the API server listens on, empty if it is not
// running.
func (as *APIService) Addr() string {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.api == nil {
		return ""
	}
	return as.api.Addr()
}
