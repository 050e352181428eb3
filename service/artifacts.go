package service

import (
	"context"
	"fmt"
	"time"

	"github.com/odyzzey/zk-accumulator-demo/circuits"
	"github.com/odyzzey/zk-accumulator-demo/log"
)

// PrepareArtifacts loads the circuit artifacts from dir, running the setup
// and storing them when they are missing. The setup is bounded by timeout.
func PrepareArtifacts(dir string, timeout time.Duration) (*circuits.CircuitArtifacts, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type result struct {
		artifacts *circuits.CircuitArtifacts
		err       error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		a, err := circuits.LoadOrSetup(dir)
		done <- result{a, err}
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("circuit artifacts not ready: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		log.Infow("circuit artifacts ready", "dir", dir, "took", time.Since(start).String())
		return r.artifacts, nil
	}
}
