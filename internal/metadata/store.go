// Package metadata maintains the merged, per-class view of structural
// reflection and doc comment tags, and answers queries against it.
package metadata

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/phobologic/docreflect/internal/model"
	"github.com/phobologic/docreflect/internal/structure"
)

// Reflector is the structural reflection the store builds from. Reflect
// returns a class together with its inherited and trait members.
type Reflector interface {
	Reflect(name string) (*model.ClassInfo, error)
	Parent(name string) (string, bool)
	Implements(name, iface string) bool
}

// Persister is an optional second-level cache of built records, keyed by
// class name. A miss is (nil, false, nil).
type Persister interface {
	Load(ctx context.Context, className string) (*model.ClassMetadata, bool, error)
	Save(ctx context.Context, meta *model.ClassMetadata) error
}

// Store lazily builds and memoizes ClassMetadata per class. At most one build
// runs per class; concurrent callers wait for it. Records are never
// invalidated once built.
type Store struct {
	reflector Reflector
	tags      TagSource
	persister Persister
	proxies   []string
	logger    *zap.Logger

	group singleflight.Group

	mu      sync.RWMutex
	classes map[string]*model.ClassMetadata
}

// Option configures a Store.
type Option func(*Store)

// WithPersister consults p before building a class and saves to it after.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithProxyInterfaces sets the interfaces that mark a proxy class.
func WithProxyInterfaces(ifaces ...string) Option {
	return func(s *Store) { s.proxies = ifaces }
}

// WithLogger sets the logger for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a Store building from reflector and tags.
func New(reflector Reflector, tags TagSource, opts ...Option) *Store {
	s := &Store{
		reflector: reflector,
		tags:      tags,
		logger:    zap.NewNop(),
		classes:   make(map[string]*model.ClassMetadata),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// get returns the record for className, building it on first use. Class
// names are matched case-insensitively. An unknown class yields a cached
// record with Found == false.
func (s *Store) get(className string) (*model.ClassMetadata, error) {
	className = model.NormalizeClassName(className)
	key := strings.ToLower(className)

	s.mu.RLock()
	meta, ok := s.classes[key]
	s.mu.RUnlock()
	if ok {
		return meta, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		s.mu.RLock()
		meta, ok := s.classes[key]
		s.mu.RUnlock()
		if ok {
			return meta, nil
		}

		meta, err := s.load(className)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.classes[key] = meta
		s.mu.Unlock()
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ClassMetadata), nil
}

// load produces the record for className from the persisted cache or by
// building it.
func (s *Store) load(className string) (*model.ClassMetadata, error) {
	ctx := context.Background()

	if s.persister != nil {
		meta, ok, err := s.persister.Load(ctx, className)
		switch {
		case err != nil:
			s.logger.Warn("loading persisted metadata", zap.String("class", className), zap.Error(err))
		case ok && s.fresh(ctx, meta):
			s.logger.Debug("persisted metadata hit", zap.String("class", className))
			return meta, nil
		}
	}

	baseline, err := s.reflector.Reflect(className)
	if errors.Is(err, structure.ErrClassNotFound) {
		s.logger.Debug("class not reflected", zap.String("class", className))
		meta := model.NewClassMetadata(className)
		meta.Built = true
		return meta, nil
	}
	if err != nil {
		return nil, err
	}

	meta, err := Build(baseline, s.tags)
	if err != nil {
		return nil, err
	}
	files := sourceFiles(meta)
	meta.ModTime = modTime(files...)
	meta.SourceHash = sourceHash(files...)

	if s.persister != nil {
		if err := s.persister.Save(ctx, meta); err != nil {
			s.logger.Warn("saving persisted metadata", zap.String("class", className), zap.Error(err))
		}
	}
	return meta, nil
}

// fresh reports whether a persisted record still matches its source files.
// A record whose files were touched but not changed is re-saved with the new
// modification time.
func (s *Store) fresh(ctx context.Context, meta *model.ClassMetadata) bool {
	if meta == nil || !meta.Found {
		return false
	}
	if meta.File == "" {
		return true
	}
	files := sourceFiles(meta)
	mt := modTime(files...)
	if mt == meta.ModTime {
		return true
	}
	if meta.SourceHash == "" || sourceHash(files...) != meta.SourceHash {
		return false
	}
	meta.ModTime = mt
	if err := s.persister.Save(ctx, meta); err != nil {
		s.logger.Warn("saving persisted metadata", zap.String("class", meta.Name), zap.Error(err))
	}
	return true
}

func sourceFiles(meta *model.ClassMetadata) []string {
	return append([]string{meta.File}, meta.Sources...)
}

// sourceHash hashes the contents of paths in order. It returns "" when one
// of them cannot be read.
func sourceHash(paths ...string) string {
	h := xxh3.New()
	for _, path := range paths {
		if !hashFile(h, path) {
			return ""
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func hashFile(w io.Writer, path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err == nil
}

// modTime returns the latest modification time of paths in unix
// nanoseconds. Missing files count as 0.
func modTime(paths ...string) int64 {
	var latest int64
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		latest = max(latest, info.ModTime().UnixNano())
	}
	return latest
}

// lookup is get for the boolean and scalar queries: errors are logged and
// answered with an empty record.
func (s *Store) lookup(className string) *model.ClassMetadata {
	meta, err := s.get(className)
	if err != nil {
		s.logger.Warn("building class metadata", zap.String("class", className), zap.Error(err))
		return nil
	}
	return meta
}

// ClassMetadata returns a deep copy of the merged record for className.
func (s *Store) ClassMetadata(className string) (*model.ClassMetadata, error) {
	meta, err := s.get(className)
	if err != nil {
		return nil, err
	}
	return meta.Clone(), nil
}

// Warm builds the records of classNames ahead of their first query and
// returns the first error encountered.
func (s *Store) Warm(classNames ...string) error {
	var first error
	for _, name := range classNames {
		if _, err := s.get(name); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Len returns the number of cached records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.classes)
}

// EliminateProxy rewrites *className to its parent when the class implements
// one of the configured proxy interfaces, directly or through an ancestor,
// and reports whether it did.
func (s *Store) EliminateProxy(className *string) bool {
	if className == nil || *className == "" {
		return false
	}
	name := model.NormalizeClassName(*className)
	for _, iface := range s.proxies {
		if !s.reflector.Implements(name, iface) {
			continue
		}
		parent, ok := s.reflector.Parent(name)
		if !ok {
			return false
		}
		*className = parent
		return true
	}
	return false
}
