// Package contentstore provides content-addressed storage of immutable
// archive blobs, with on-demand extraction to a filesystem cache.
package contentstore

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/static/errs"
)

// BlobRef identifies a stored blob by its content hash. Same bytes,
// same reference: storing identical content twice is a no-op.
type BlobRef string

// Store keeps blobs under <root>/blobs/<hash> and extracted archives
// under <root>/cache/<namespace>/<hash>. Extraction is assumed
// expensive, so cache hits are returned without touching the archive.
type Store struct {
	root   string
	logger primary.Logger

	// guards locks; each entry serializes extraction of one
	// (namespace, ref) pair so at most one extraction is in flight
	// per ref while different refs never contend
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// extraction hook, replaceable in tests
	extract func(blobPath, destPath string) error
}

// NewStore creates a content store rooted at the given directory
func NewStore(root string, logger primary.Logger) (*Store, error) {
	for _, dir := range []string{filepath.Join(root, "blobs"), filepath.Join(root, "cache")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating store root: %v", errs.IoError, err)
		}
	}
	s := &Store{
		root:   root,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
	s.extract = s.extractTarGz
	return s, nil
}

// Store persists a blob under its content hash and returns the
// reference. Idempotent: storing the same bytes again returns the
// same reference without rewriting the blob.
func (s *Store) Store(ctx context.Context, data []byte) (BlobRef, error) {
	sum := sha256.Sum256(data)
	ref := BlobRef(hex.EncodeToString(sum[:]))

	blobPath := s.blobPath(ref)
	if _, err := os.Stat(blobPath); err == nil {
		s.logger.Debug("Blob already stored", "ref", ref)
		return ref, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: stat blob: %v", errs.IoError, err)
	}

	// Stage to a temp file and rename so a crash never leaves a
	// truncated blob under a valid hash
	tmp, err := os.CreateTemp(filepath.Join(s.root, "blobs"), "blob-*")
	if err != nil {
		return "", fmt.Errorf("%w: creating blob: %v", errs.IoError, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: writing blob: %v", errs.IoError, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: closing blob: %v", errs.IoError, err)
	}
	if err := os.Rename(tmp.Name(), blobPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: storing blob: %v", errs.IoError, err)
	}

	s.logger.Info("Blob stored", "ref", ref, "size", len(data))
	return ref, nil
}

// Open returns a reader over a stored blob
func (s *Store) Open(ctx context.Context, ref BlobRef) (io.ReadCloser, error) {
	f, err := os.Open(s.blobPath(ref))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errs.BlobNotFound, ref)
		}
		return nil, fmt.Errorf("%w: opening blob: %v", errs.IoError, err)
	}
	return f, nil
}

// Resolve materializes the archive identified by ref into the cache
// for the given namespace and returns the extracted path. A cache hit
// is returned unchanged without re-extraction. Concurrent calls for
// the same ref perform at most one extraction.
func (s *Store) Resolve(ctx context.Context, ref BlobRef, namespace string) (string, error) {
	blobPath := s.blobPath(ref)
	if _, err := os.Stat(blobPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", errs.BlobNotFound, ref)
		}
		return "", fmt.Errorf("%w: stat blob: %v", errs.IoError, err)
	}

	lock := s.refLock(namespace + "/" + string(ref))
	lock.Lock()
	defer lock.Unlock()

	destPath := filepath.Join(s.root, "cache", namespace, string(ref))
	if _, err := os.Stat(destPath); err == nil {
		s.logger.Debug("Archive cache hit", "ref", ref, "namespace", namespace)
		return destPath, nil
	}

	if err := os.MkdirAll(filepath.Join(s.root, "cache", namespace), 0o755); err != nil {
		return "", fmt.Errorf("%w: creating cache namespace: %v", errs.IoError, err)
	}

	// Extract into a staging dir and rename in, so a failed or
	// interrupted extraction never becomes visible as a cache hit
	staging, err := os.MkdirTemp(filepath.Join(s.root, "cache", namespace), ".extract-*")
	if err != nil {
		return "", fmt.Errorf("%w: creating staging dir: %v", errs.IoError, err)
	}
	if err := s.extract(blobPath, staging); err != nil {
		os.RemoveAll(staging)
		return "", fmt.Errorf("%w: %s: %v", errs.CorruptArchive, ref, err)
	}
	if err := os.Rename(staging, destPath); err != nil {
		os.RemoveAll(staging)
		return "", fmt.Errorf("%w: committing extraction: %v", errs.IoError, err)
	}

	s.logger.Info("Archive extracted", "ref", ref, "namespace", namespace)
	return destPath, nil
}

func (s *Store) blobPath(ref BlobRef) string {
	return filepath.Join(s.root, "blobs", string(ref))
}

func (s *Store) refLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// extractTarGz unpacks a gzip-compressed tar archive
func (s *Store) extractTarGz(blobPath, destPath string) error {
	f, err := os.Open(blobPath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading gzip header: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		name := filepath.Clean(hdr.Name)
		if name == "." {
			continue
		}
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("archive entry escapes extraction root: %s", hdr.Name)
		}
		target := filepath.Join(destPath, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating dir %s: %w", name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent of %s: %w", name, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return fmt.Errorf("creating file %s: %w", name, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("writing file %s: %w", name, err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("closing file %s: %w", name, err)
			}
		default:
			// symlinks and special files are not part of the
			// archive contract
			return fmt.Errorf("unsupported tar entry type %d for %s", hdr.Typeflag, name)
		}
	}
}
