package device

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"

	"videod/pkg/types"
)

// Weights is a device-resident model asset: immutable after load, shared
// read-only across jobs, released only at process shutdown. The content
// digest parameterizes the backend kernels so identical weight files always
// produce identical outputs.
type Weights struct {
	Role   types.AssetRole
	Path   string
	SizeMB int
	Digest uint64
}

// LoadWeights opens an already-materialized asset file, verifies an optional
// checksum sidecar, and hashes the content. Missing, empty, or mismatching
// files are load failures; the caller decides whether they are fatal.
func LoadWeights(role types.AssetRole, path string) (*Weights, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s weights: %w", role, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s weights path is a directory: %s", role, path)
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("%s weights file is empty: %s", role, path)
	}
	if err := verifySidecar(path); err != nil {
		return nil, fmt.Errorf("%s weights: %w", role, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s weights: %w", role, err)
	}
	defer f.Close()
	h := fnv.New64a()
	if _, err := io.Copy(h, bufio.NewReaderSize(f, 1<<20)); err != nil {
		return nil, fmt.Errorf("read %s weights: %w", role, err)
	}
	mb := int(fi.Size() / (1024 * 1024))
	if mb <= 0 {
		// Conservative 1MB floor so budget checks never see a zero estimate.
		mb = 1
	}
	return &Weights{Role: role, Path: path, SizeMB: mb, Digest: h.Sum64()}, nil
}

// verifySidecar checks path against path+".sha256" when the sidecar exists.
// The sidecar holds the hex digest as its first whitespace-separated token
// (sha256sum output format).
func verifySidecar(path string) error {
	raw, err := os.ReadFile(path + ".sha256")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read checksum sidecar: %w", err)
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return fmt.Errorf("checksum sidecar is empty: %s", path+".sha256")
	}
	want := strings.ToLower(fields[0])
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open for checksum: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("checksum read: %w", err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("checksum mismatch: have %s want %s", got, want)
	}
	return nil
}
