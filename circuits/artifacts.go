// Package circuits manages the proving artifacts of the fold circuit: the
// compiled constraint system and the Groth16 proving and verifying keys. Keys
// are cached on disk, named after the hash of the constraint system they
// belong to, so a node restart keeps verifying the receipts it proved
// before.
package circuits

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/odyzzey/zk-accumulator-demo/circuits/fold"
	"github.com/odyzzey/zk-accumulator-demo/log"
)

// BaseDir is the path where the artifact cache is expected to be found. It
// defaults to the env var ZKACC_ARTIFACTS_DIR or the user cache directory.
var BaseDir string

func init() {
	if dir := os.Getenv("ZKACC_ARTIFACTS_DIR"); dir != "" {
		BaseDir = dir
		return
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		BaseDir = filepath.Join(os.TempDir(), "zkacc-artifacts")
		return
	}
	BaseDir = filepath.Join(home, ".cache", "zkacc-artifacts")
}

// CircuitArtifacts holds the compiled fold circuit and its keys.
type CircuitArtifacts struct {
	hash         []byte
	ccs          constraint.ConstraintSystem
	provingKey   groth16.ProvingKey
	verifyingKey groth16.VerifyingKey
}

// CircuitHash returns the sha256 of the serialized constraint system. It
// identifies the fold method: receipts proved with a different circuit do
// not verify.
func (ca *CircuitArtifacts) CircuitHash() []byte {
	return ca.hash
}

// CircuitDefinition returns the compiled constraint system.
func (ca *CircuitArtifacts) CircuitDefinition() constraint.ConstraintSystem {
	return ca.ccs
}

// ProvingKey returns the Groth16 proving key.
func (ca *CircuitArtifacts) ProvingKey() groth16.ProvingKey {
	return ca.provingKey
}

// VerifyingKey returns the Groth16 verifying key.
func (ca *CircuitArtifacts) VerifyingKey() groth16.VerifyingKey {
	return ca.verifyingKey
}

// Compile compiles the fold circuit and returns the constraint system and
// the hash of its serialization.
func Compile() (constraint.ConstraintSystem, []byte, error) {
	ccs, err := frontend.Compile(fold.Curve.ScalarField(), r1cs.NewBuilder, &fold.Circuit{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compile fold circuit: %w", err)
	}
	var buf bytes.Buffer
	if _, err := ccs.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("failed to serialize fold circuit: %w", err)
	}
	hash := sha256.Sum256(buf.Bytes())
	return ccs, hash[:], nil
}

// LoadOrSetup compiles the fold circuit and loads its keys from dir. If the
// keys are not cached yet, a new Groth16 setup is run and its keys are
// stored in dir. An empty dir skips the cache and always runs the setup.
func LoadOrSetup(dir string) (*CircuitArtifacts, error) {
	ccs, hash, err := Compile()
	if err != nil {
		return nil, err
	}
	ca := &CircuitArtifacts{hash: hash, ccs: ccs}
	log.Debugw("fold circuit compiled",
		"constraints", ccs.GetNbConstraints(),
		"hash", hex.EncodeToString(hash))

	if dir != "" {
		ok, err := ca.load(dir)
		if err != nil {
			return nil, err
		}
		if ok {
			log.Infow("fold circuit keys loaded", "dir", dir)
			return ca, nil
		}
	}

	if ca.provingKey, ca.verifyingKey, err = groth16.Setup(ccs); err != nil {
		return nil, fmt.Errorf("failed to setup fold circuit: %w", err)
	}
	log.Infow("fold circuit setup done", "hash", hex.EncodeToString(hash))
	if dir != "" {
		if err := ca.store(dir); err != nil {
			return nil, err
		}
	}
	return ca, nil
}

func (ca *CircuitArtifacts) keyPaths(dir string) (string, string) {
	name := hex.EncodeToString(ca.hash)
	return filepath.Join(dir, name+".pk"), filepath.Join(dir, name+".vk")
}

// load reads the cached keys. It returns false if any of them is missing.
func (ca *CircuitArtifacts) load(dir string) (bool, error) {
	pkPath, vkPath := ca.keyPaths(dir)
	pk := groth16.NewProvingKey(fold.Curve)
	if ok, err := readArtifact(pkPath, pk); !ok || err != nil {
		return false, err
	}
	vk := groth16.NewVerifyingKey(fold.Curve)
	if ok, err := readArtifact(vkPath, vk); !ok || err != nil {
		return false, err
	}
	ca.provingKey, ca.verifyingKey = pk, vk
	return true, nil
}

func (ca *CircuitArtifacts) store(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating the artifacts directory: %w", err)
	}
	pkPath, vkPath := ca.keyPaths(dir)
	if err := writeArtifact(pkPath, ca.provingKey); err != nil {
		return err
	}
	return writeArtifact(vkPath, ca.verifyingKey)
}

func readArtifact(path string, dst io.ReaderFrom) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("error reading file %s: %w", path, err)
	}
	if _, err := dst.ReadFrom(bytes.NewReader(content)); err != nil {
		return false, fmt.Errorf("error decoding file %s: %w", path, err)
	}
	return true, nil
}

// writeArtifact writes to a partial file first, then renames it, so a
// crashed write never leaves a truncated key behind.
func writeArtifact(path string, src io.WriterTo) error {
	partialPath := path + ".partial"
	fd, err := os.OpenFile(partialPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("error opening artifact file: %w", err)
	}
	if _, err := src.WriteTo(fd); err != nil {
		fd.Close()
		os.Remove(partialPath)
		return fmt.Errorf("error writing artifact file: %w", err)
	}
	if err := fd.Close(); err != nil {
		return fmt.Errorf("error closing artifact file: %w", err)
	}
	if err := os.Rename(partialPath, path); err != nil {
		return fmt.Errorf("error renaming file: %w", err)
	}
	return nil
}

// ArtifactFiles lists the cached key files in dir.
func ArtifactFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".pk") || strings.HasSuffix(e.Name(), ".vk") {
			files = append(files, e.Name())
		}
	}
	return files, nil
}
