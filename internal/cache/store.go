// Package cache provides a content-addressed, tier-namespaced file store.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/antigravity-dev/git-news/internal/errs"
)

// Namespace identifies one tier's cache subdirectory.
type Namespace string

const (
	NamespaceCommits         Namespace = "commits"
	NamespaceDailySummaries  Namespace = "daily_summaries"
	NamespaceWeeklySummaries Namespace = "weekly_summaries"
	NamespaceNarratives      Namespace = "narratives"
	NamespaceChangelogs      Namespace = "changelogs"
)

var allNamespaces = []Namespace{
	NamespaceCommits,
	NamespaceDailySummaries,
	NamespaceWeeklySummaries,
	NamespaceNarratives,
	NamespaceChangelogs,
}

// Store is a typed, tier-namespaced, content-addressed key-value store
// backed by files under root. It is safe for concurrent use.
type Store struct {
	root   string
	logger *slog.Logger
}

// New creates (if necessary) the cache directory tree under root and
// returns a Store. A nil logger is replaced with slog.Default().
func New(root string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, ns := range allNamespaces {
		if err := os.MkdirAll(filepath.Join(root, string(ns)), 0o755); err != nil {
			return nil, errs.NewCacheError("mkdir "+string(ns), err)
		}
	}
	return &Store{root: root, logger: logger}, nil
}

// Key computes the 16-hex-character digest for inputs. List inputs are
// hashed after sorting so permutations collide (order-insensitive keying for
// unordered inputs).
func Key(inputs []string) string {
	sorted := make([]string, len(inputs))
	copy(sorted, inputs)
	sort.Strings(sorted)

	h := xxhash.New()
	for _, s := range sorted {
		_, _ = h.WriteString(s)
		_, _ = h.WriteString("\x00")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// GetJSON reads a structured cache entry into dst. It returns (false, nil)
// on any miss: absent file, unreadable file, or JSON that doesn't decode
// into dst's shape. Corruption is treated as an implicit cache miss, never
// an error.
func (s *Store) GetJSON(ns Namespace, key string, dst any) bool {
	path := s.path(ns, key, "json")
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("cache entry failed schema validation, treating as miss",
			"namespace", ns, "key", key, "error", err)
		return false
	}
	return true
}

// PutJSON writes a structured cache entry atomically (temp file + rename).
// I/O errors are logged and returned as a non-fatal *errs.CacheError; the
// caller should proceed without caching on error.
func (s *Store) PutJSON(ns Namespace, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		ce := errs.NewCacheError("marshal", err)
		s.logger.Warn("cache put failed", "namespace", ns, "key", key, "error", ce)
		return ce
	}
	return s.writeAtomic(ns, key, "json", data)
}

// GetText reads a free-form text cache entry. Same miss semantics as
// GetJSON.
func (s *Store) GetText(ns Namespace, key string) (string, bool) {
	path := s.path(ns, key, "txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// PutText writes a free-form text cache entry atomically.
func (s *Store) PutText(ns Namespace, key, value string) error {
	return s.writeAtomic(ns, key, "txt", []byte(value))
}

func (s *Store) writeAtomic(ns Namespace, key, ext string, data []byte) error {
	dir := filepath.Join(s.root, string(ns))
	final := s.path(ns, key, ext)
	tmp, err := os.CreateTemp(dir, "."+key+"-*.tmp")
	if err != nil {
		ce := errs.NewCacheError("create temp file", err)
		s.logger.Warn("cache put failed", "namespace", ns, "key", key, "error", ce)
		return ce
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		ce := errs.NewCacheError("write temp file", err)
		s.logger.Warn("cache put failed", "namespace", ns, "key", key, "error", ce)
		return ce
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		ce := errs.NewCacheError("close temp file", err)
		s.logger.Warn("cache put failed", "namespace", ns, "key", key, "error", ce)
		return ce
	}
	if err := os.Rename(tmpPath, final); err != nil {
		_ = os.Remove(tmpPath)
		ce := errs.NewCacheError("rename", err)
		s.logger.Warn("cache put failed", "namespace", ns, "key", key, "error", ce)
		return ce
	}
	return nil
}

func (s *Store) path(ns Namespace, key, ext string) string {
	return filepath.Join(s.root, string(ns), key+"."+ext)
}

// Clear deletes the entire cache tree rooted at s.root, recreating the empty
// namespace directories afterward. This backs the CLI's -clear-cache flag.
func (s *Store) Clear() error {
	for _, ns := range allNamespaces {
		dir := filepath.Join(s.root, string(ns))
		if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errs.NewCacheError("clear "+string(ns), err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.NewCacheError("recreate "+string(ns), err)
		}
	}
	return nil
}
