package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/odyzzey/zk-accumulator-demo/log"
)

// ContractMonitor represents a service that watches the stored contracts
// and registers the ones the sequencer does not know yet. It makes the
// contracts created before a restart, or by another API instance sharing the
// database, available for settlement.
type ContractMonitor struct {
	source   ContractSource
	registry ContractRegistry
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewContractMonitor creates a new ContractMonitor service.
func NewContractMonitor(source ContractSource, registry ContractRegistry, interval time.Duration) *ContractMonitor {
	return &ContractMonitor{
		source:   source,
		registry: registry,
		interval: interval,
	}
}

// Start registers the stored contracts and keeps monitoring for new ones. It
// returns an error if the service is already running or the first sync
// fails.
func (cm *ContractMonitor) Start(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.cancel != nil {
		return fmt.Errorf("service already running")
	}
	if cm.interval <= 0 {
		return fmt.Errorf("invalid monitor interval: %s", cm.interval)
	}
	if _, err := cm.Sync(); err != nil {
		return fmt.Errorf("failed to register stored contracts: %w", err)
	}

	ctx, cm.cancel = context.WithCancel(ctx)
	cm.done = make(chan struct{})
	go cm.monitorContracts(ctx, cm.done)
	return nil
}

// Stop halts the monitoring service.
func (cm *ContractMonitor) Stop() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.cancel != nil {
		cm.cancel()
		<-cm.done
		cm.cancel = nil
	}
}

// Sync registers the stored contracts missing from the registry and returns
// how many were added.
func (cm *ContractMonitor) Sync() (int, error) {
	stored, err := cm.source.ListContracts()
	if err != nil {
		return 0, err
	}
	known := make(map[string]struct{})
	for _, id := range cm.registry.Contracts() {
		known[string(id)] = struct{}{}
	}
	added := 0
	for _, id := range stored {
		if _, ok := known[string(id)]; ok {
			continue
		}
		if err := cm.registry.AddContract(id); err != nil {
			return added, fmt.Errorf("failed to add contract %s: %w", id, err)
		}
		log.Debugw("stored contract registered", "contractId", id.String())
		added++
	}
	return added, nil
}

func (cm *ContractMonitor) monitorContracts(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := cm.Sync(); err != nil {
				log.Warnw("failed to sync contracts", "error", err.Error())
			}
		}
	}
}
