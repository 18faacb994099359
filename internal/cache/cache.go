// Package cache persists build artifacts in a versioned, fingerprinted
// envelope so they can be reloaded only when still valid.
package cache

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Version is bumped whenever the on-disk layout of any payload changes.
const Version byte = 1

var magic = []byte("RAGC")

var (
	ErrNotFound = errors.New("cache file not found")
	ErrCorrupt  = errors.New("cache file corrupt")
	ErrVersion  = errors.New("cache version mismatch")
	ErrStale    = errors.New("cache is stale")
)

type header struct {
	Kind        string
	Fingerprint string
}

// Save writes payload to path atomically: the envelope is written to a
// temporary file in the same directory which is then renamed over path.
func Save[T any](path, kind, fingerprint string, payload T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(magic); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache header: %w", err)
	}
	if err := w.WriteByte(Version); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache header: %w", err)
	}
	enc := gob.NewEncoder(w)
	if err := enc.Encode(header{Kind: kind, Fingerprint: fingerprint}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode cache header: %w", err)
	}
	if err := enc.Encode(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// Load reads a payload saved by Save. It fails with ErrNotFound, ErrCorrupt,
// ErrVersion or ErrStale (when fingerprint is non-empty and differs from the
// stored one).
func Load[T any](path, kind, fingerprint string) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zero, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return zero, fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	prefix := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return zero, fmt.Errorf("%s: short header: %w", path, ErrCorrupt)
	}
	if !bytes.Equal(prefix[:len(magic)], magic) {
		return zero, fmt.Errorf("%s: bad magic: %w", path, ErrCorrupt)
	}
	if v := prefix[len(magic)]; v != Version {
		return zero, fmt.Errorf("%s: version %d, want %d: %w", path, v, Version, ErrVersion)
	}

	dec := gob.NewDecoder(r)
	var h header
	if err := dec.Decode(&h); err != nil {
		return zero, fmt.Errorf("%s: decode header: %v: %w", path, err, ErrCorrupt)
	}
	if h.Kind != kind {
		return zero, fmt.Errorf("%s: holds %q, want %q: %w", path, h.Kind, kind, ErrCorrupt)
	}
	if fingerprint != "" && h.Fingerprint != fingerprint {
		return zero, fmt.Errorf("%s: %w", path, ErrStale)
	}
	var payload T
	if err := dec.Decode(&payload); err != nil {
		return zero, fmt.Errorf("%s: decode payload: %v: %w", path, err, ErrCorrupt)
	}
	return payload, nil
}

// Exists reports whether path holds a readable cache envelope of the current
// version, without decoding its payload.
func Exists(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	prefix := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(f, prefix); err != nil {
		return false
	}
	return bytes.Equal(prefix[:len(magic)], magic) && prefix[len(magic)] == Version
}

// Remove deletes the cache file at path; a missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}
