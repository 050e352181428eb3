package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/odyzzey/zk-accumulator-demo/storage"
	"github.com/odyzzey/zk-accumulator-demo/types"
	"github.com/vocdoni/arbo/memdb"
)

type testRegistry struct {
	mu        sync.Mutex
	contracts []types.ContractID
	fail      bool
}

func (r *testRegistry) Contracts() []types.ContractID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ContractID{}, r.contracts...)
}

func (r *testRegistry) AddContract(id types.ContractID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("registry closed")
	}
	r.contracts = append(r.contracts, id)
	return nil
}

func (r *testRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contracts)
}

func TestContractMonitor(t *testing.T) {
	c := qt.New(t)

	store := storage.New(memdb.New())
	defer store.Close()
	for range 2 {
		c.Assert(store.SetContract(&storage.Contract{ID: types.NewContractID(), CreatedAt: time.Now()}), qt.IsNil)
	}

	registry := &testRegistry{}
	monitor := NewContractMonitor(store, registry, 20*time.Millisecond)
	c.Assert(monitor.Start(context.Background()), qt.IsNil)
	defer monitor.Stop()
	// stored contracts are registered by Start
	c.Assert(registry.len(), qt.Equals, 2)
	c.Assert(monitor.Start(context.Background()), qt.ErrorMatches, "service already running")

	c.Assert(store.SetContract(&storage.Contract{ID: types.NewContractID(), CreatedAt: time.Now()}), qt.IsNil)
	deadline := time.Now().Add(5 * time.Second)
	for registry.len() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	c.Assert(registry.len(), qt.Equals, 3)

	// known contracts are not added twice
	added, err := monitor.Sync()
	c.Assert(err, qt.IsNil)
	c.Assert(added, qt.Equals, 0)
	monitor.Stop()
	monitor.Stop()
}

func TestContractMonitorErrors(t *testing.T) {
	c := qt.New(t)

	store := storage.New(memdb.New())
	defer store.Close()
	c.Assert(store.SetContract(&storage.Contract{ID: types.NewContractID(), CreatedAt: time.Now()}), qt.IsNil)

	monitor := NewContractMonitor(store, &testRegistry{fail: true}, time.Second)
	c.Assert(monitor.Start(context.Background()), qt.ErrorMatches, "failed to register stored contracts: .*registry closed")

	monitor = NewContractMonitor(store, &testRegistry{}, 0)
	c.Assert(monitor.Start(context.Background()), qt.ErrorMatches, "invalid monitor interval: 0s")
}
