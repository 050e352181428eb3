package config

import (
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestLoadDefaults(t *testing.T) {
	c := qt.New(t)
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(nil)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.DBType, qt.Equals, "pebble")
	c.Assert(cfg.APIPort, qt.Equals, 9090)
	c.Assert(cfg.BatchSize, qt.Equals, 10)
	c.Assert(cfg.BatchTimeWindow, qt.Equals, 30*time.Second)
	c.Assert(cfg.Workers, qt.Equals, 2)
	c.Assert(cfg.ProverKeys, qt.HasLen, 0)
	c.Assert(filepath.Base(cfg.DataDir), qt.Equals, ".zkacc")
	c.Assert(cfg.DatabaseDir(), qt.Equals, filepath.Join(cfg.DataDir, "db"))
}

func TestLoadLayers(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	t.Setenv("ZKACC_DATADIR", dir)
	t.Setenv("ZKACC_API_PORT", "8000")
	t.Setenv("ZKACC_WORKERS", "4")
	t.Setenv("ZKACC_BATCH_TIME_WINDOW", "5s")
	t.Setenv("ZKACC_AUTHORIZED_PROVERS", "0x01,0x02")

	cfg, err := Load([]string{"--port", "8001", "--batchSize=3"})
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.DataDir, qt.Equals, dir)
	// flags override the environment
	c.Assert(cfg.APIPort, qt.Equals, 8001)
	c.Assert(cfg.BatchSize, qt.Equals, 3)
	c.Assert(cfg.Workers, qt.Equals, 4)
	c.Assert(cfg.BatchTimeWindow, qt.Equals, 5*time.Second)
	c.Assert(cfg.AuthorizedProvers, qt.DeepEquals, []string{"0x01", "0x02"})
}

func TestLoadInvalid(t *testing.T) {
	c := qt.New(t)
	t.Setenv("HOME", t.TempDir())
	for _, args := range [][]string{
		{"--batchSize", "0"},
		{"--batchSize", "11"},
		{"--workers", "0"},
		{"--batchTimeWindow", "0s"},
		{"--dbType", "leveldb"},
		{"--port", "70000"},
		{"--unknown"},
	} {
		_, err := Load(args)
		c.Assert(err, qt.IsNotNil, qt.Commentf("args %v", args))
	}

	t.Setenv("ZKACC_WORKERS", "many")
	_, err := Load(nil)
	c.Assert(err, qt.IsNotNil)
}
