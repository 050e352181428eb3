// Command demo runs the accumulator without the HTTP layer: a few provers
// fold batches of votes in parallel, and the settlement authority verifies
// and applies each receipt to a single contract point.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/odyzzey/zk-accumulator-demo/circuits"
	"github.com/odyzzey/zk-accumulator-demo/crypto/ethereum"
	"github.com/odyzzey/zk-accumulator-demo/log"
	"github.com/odyzzey/zk-accumulator-demo/prover"
	"github.com/odyzzey/zk-accumulator-demo/state"
	"github.com/odyzzey/zk-accumulator-demo/types"
	flag "github.com/spf13/pflag"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"golang.org/x/sync/errgroup"
)

func main() {
	provers := flag.IntP("provers", "n", 2, "number of provers running in parallel")
	batch := flag.IntP("batch", "b", 5, "prover n folds the votes (n*i,n*i,1) for i in [0, batch), n starting at 1")
	artifactsDir := flag.String("artifactsDir", "", "proving artifacts cache directory, empty runs a new setup")
	logLevel := flag.StringP("logLevel", "l", "info", "log level (debug, info, warn, error)")
	flag.Parse()
	log.Init(*logLevel, "stdout", nil)

	if *provers < 1 {
		log.Fatalf("at least one prover is required")
	}
	if *batch > types.VotesPerBatch || *batch < 0 {
		log.Fatalf("batch must be between 0 and %d", types.VotesPerBatch)
	}
	if err := run(*provers, *batch, *artifactsDir); err != nil {
		log.Fatal(err)
	}
}

func run(nProvers, batch int, artifactsDir string) error {
	start := time.Now()
	artifacts, err := circuits.LoadOrSetup(artifactsDir)
	if err != nil {
		return err
	}
	log.Infow("fold circuit ready", "took", time.Since(start).String())

	// settlement layer
	dir, err := os.MkdirTemp("", "zkacc-demo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	database, err := metadb.New(db.TypePebble, dir)
	if err != nil {
		return err
	}
	defer database.Close()
	contractID := types.NewContractID()
	st, err := state.New(database, contractID)
	if err != nil {
		return err
	}
	if err := st.Initialize(); err != nil {
		return err
	}
	verifier := prover.NewVerifier(artifacts.VerifyingKey())

	// execution layer
	provers := make([]*prover.Prover, nProvers)
	for i := range provers {
		key := ethereum.NewSignKeys()
		if err := key.Generate(); err != nil {
			return err
		}
		if provers[i], err = prover.New(artifacts, key); err != nil {
			return err
		}
		verifier.Authorize(provers[i].Address())
	}

	receipts := make([]*types.Receipt, nProvers)
	g, ctx := errgroup.WithContext(context.Background())
	for i, p := range provers {
		g.Go(func() error {
			r, err := p.Prove(ctx, contractID, proverVotes(i, batch))
			if err != nil {
				return fmt.Errorf("prover %s: %w", p.Address().Hex(), err)
			}
			receipts[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Infow("batches proved", "provers", nProvers, "took", time.Since(start).String())

	fmt.Printf("contract %s, initial state %s\n", contractID, st.Point())
	for i, r := range receipts {
		if err := verifier.Verify(r); err != nil {
			return fmt.Errorf("receipt %s: %w", r.ID, err)
		}
		point, err := st.Settle(r)
		if err != nil {
			return err
		}
		fmt.Printf("transaction %d by %s\n  journal: %s\n  state:   %s\n", i+1, r.Prover.Hex(), r.Journal, point)
		if x, y, err := point.Average(); err == nil {
			fmt.Printf("  average: (%s, %s)\n", x, y)
		}
	}
	return nil
}

// proverVotes returns the votes folded by the i-th prover: (n*k, n*k, 1) for
// k in [0, batch), with n = i+1.
func proverVotes(i, batch int) []types.PointVote {
	n := int64(i + 1)
	votes := make([]types.PointVote, 0, batch)
	for k := int64(0); k < int64(batch); k++ {
		votes = append(votes, types.NewPointVote(n*k, n*k, 1))
	}
	return votes
}
