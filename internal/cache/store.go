package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	// ErrNotFound is returned when a blob or entry does not exist.
	ErrNotFound = errors.New("cache: not found")
	// ErrIntegrity is returned when stored bytes no longer match their hash.
	ErrIntegrity = errors.New("cache: integrity check failed")
)

const (
	contentDir = "content"
	tmpDir     = "tmp"
)

// Store is a content-addressable blob store. Blobs live at
// content/<hex[0:2]>/<hex[2:]> under the root and are addressed by their
// integrity string.
type Store struct {
	root string
}

// NewStore opens (creating if needed) a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	for _, sub := range []string{contentDir, tmpDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return &Store{root: dir}, nil
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) blobPath(integrity string) (string, error) {
	h, err := integrityHex(integrity)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, contentDir, h[:2], h[2:]), nil
}

// Write stores data and returns its integrity string. The blob is written
// to a temp file, synced and renamed into place, so readers never observe a
// partial blob. The final file is then re-read and re-hashed.
func (s *Store) Write(data []byte) (string, error) {
	integrity := computeIntegrity(data)
	path, err := s.blobPath(integrity)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "blob-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync temp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp blob: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("move blob into place: %w", err)
	}

	if err := s.Verify(integrity); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("verify written blob: %w", err)
	}
	return integrity, nil
}

// Read returns the blob bytes after checking them against integrity.
func (s *Store) Read(integrity string) ([]byte, error) {
	path, err := s.blobPath(integrity)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if computeIntegrity(data) != integrity {
		return nil, ErrIntegrity
	}
	return data, nil
}

// Verify re-hashes a blob without keeping it in memory.
func (s *Store) Verify(integrity string) error {
	path, err := s.blobPath(integrity)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	defer f.Close()

	h := newIntegrityHash()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash blob: %w", err)
	}
	if formatIntegrity(h.Sum(nil)) != integrity {
		return ErrIntegrity
	}
	return nil
}

// Stat returns the size of a stored blob.
func (s *Store) Stat(integrity string) (int64, error) {
	path, err := s.blobPath(integrity)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Remove deletes a blob. Missing blobs are not an error.
func (s *Store) Remove(integrity string) error {
	path, err := s.blobPath(integrity)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Walk calls fn with the integrity string of every stored blob.
func (s *Store) Walk(fn func(integrity string) error) error {
	base := filepath.Join(s.root, contentDir)
	return filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		digest, ok := decodeBlobName(rel)
		if !ok {
			// Not a blob; leave foreign files alone
			return nil
		}
		return fn(formatIntegrity(digest))
	})
}

// PurgeTmp removes leftover temp files from interrupted writes.
func (s *Store) PurgeTmp() error {
	dir := filepath.Join(s.root, tmpDir)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
