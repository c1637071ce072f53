// Package service holds the read/query and attachment-import surfaces
// that sit beside the engine without mutating its state.
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/semaphore"

	"github.com/Strob0t/AgentDeck/internal/config"
	"github.com/Strob0t/AgentDeck/internal/domain"
	"github.com/Strob0t/AgentDeck/internal/port/cache"
)

// ErrTooLarge indicates an upload exceeding the configured size limit.
var ErrTooLarge = errors.New("attachment exceeds size limit")

// Attachment describes one stored blob. ID is the hex BLAKE2b-256 digest
// of the content, so re-importing identical bytes yields the same id.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size"`
}

// Attachments is the content-addressed blob store behind prompt
// attachments. Imports are bounded by a semaphore; reads go through an
// in-process cache.
type Attachments struct {
	log      *slog.Logger
	dir      string
	maxBytes int64
	cache    cache.Cache
	sem      *semaphore.Weighted
}

// NewAttachments creates the store rooted at cfg.Dir, creating the
// directory if needed.
func NewAttachments(cfg config.Attachments, c cache.Cache, log *slog.Logger) (*Attachments, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Attachments{
		log:      log.With("component", "attachments"),
		dir:      cfg.Dir,
		maxBytes: cfg.MaxBytes,
		cache:    c,
		sem:      semaphore.NewWeighted(maxConcurrent),
	}, nil
}

// Import streams r into the blob store and returns its content address.
// Identical content imports to the same id without a second copy.
func (a *Attachments) Import(ctx context.Context, name string, r io.Reader) (Attachment, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return Attachment{}, err
	}
	defer a.sem.Release(1)

	tmp, err := os.CreateTemp(a.dir, ".import-"+uuid.NewString())
	if err != nil {
		return Attachment{}, fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return Attachment{}, err
	}

	limit := io.Reader(r)
	if a.maxBytes > 0 {
		limit = io.LimitReader(r, a.maxBytes+1)
	}
	size, err := io.Copy(io.MultiWriter(tmp, hasher), limit)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Attachment{}, fmt.Errorf("write blob: %w", err)
	}
	if a.maxBytes > 0 && size > a.maxBytes {
		return Attachment{}, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, a.maxBytes)
	}

	id := hex.EncodeToString(hasher.Sum(nil))
	dest := a.blobPath(id)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Attachment{}, fmt.Errorf("create blob dir: %w", err)
	}
	if _, err := os.Stat(dest); err == nil {
		// Already stored; the temp copy is redundant.
		a.log.Debug("attachment deduplicated", "id", id)
		return Attachment{ID: id, Name: name, Size: size}, nil
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return Attachment{}, fmt.Errorf("store blob: %w", err)
	}

	a.log.Info("attachment imported", "id", id, "size", size)
	return Attachment{ID: id, Name: name, Size: size}, nil
}

// Read returns the blob for the given content address.
func (a *Attachments) Read(ctx context.Context, id string) ([]byte, error) {
	if !validBlobID(id) {
		return nil, fmt.Errorf("%w: malformed attachment id", domain.ErrNotFound)
	}

	key := "att:" + id
	if a.cache != nil {
		if data, ok, err := a.cache.Get(ctx, key); err == nil && ok {
			return data, nil
		}
	}

	data, err := os.ReadFile(a.blobPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: attachment %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, data, 0); err != nil {
			a.log.Debug("attachment cache set failed", "id", id, "error", err)
		}
	}
	return data, nil
}

// blobPath shards blobs by the first digest byte to keep any one
// directory small.
func (a *Attachments) blobPath(id string) string {
	return filepath.Join(a.dir, id[:2], id)
}

// validBlobID guards the filesystem path: ids are exactly the 64 hex
// characters of a BLAKE2b-256 digest.
func validBlobID(id string) bool {
	if len(id) != 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
