// Package prompts holds the system prompts used by the router, the
// specialists and the auditor, loaded from markdown files.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const promptExt = ".md"

var ErrPromptNotFound = errors.New("PROMPT_NOT_FOUND")

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Store keeps prompt texts in memory keyed by file stem.
type Store struct {
	dir    string
	logger Logger

	mu      sync.RWMutex
	prompts map[string]string
}

// Load reads every *.md file in dir.
func Load(dir string, log Logger) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read prompts dir %s: %w", dir, err)
	}

	s := &Store{
		dir:     dir,
		prompts: make(map[string]string),
		logger: log.With(map[string]interface{}{
			"component": "prompts",
		}),
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != promptExt {
			continue
		}
		if err := s.reload(filepath.Join(dir, e.Name())); err != nil {
			return nil, err
		}
	}

	s.logger.Info("prompts loaded", map[string]interface{}{
		"dir":   dir,
		"count": len(s.prompts),
	})
	return s, nil
}

// FromMap builds a store without a backing directory.
func FromMap(prompts map[string]string) *Store {
	s := &Store{prompts: make(map[string]string, len(prompts))}
	for k, v := range prompts {
		s.prompts[k] = v
	}
	return s
}

func nameOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), promptExt)
}

func (s *Store) reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt %s: %w", path, err)
	}
	s.mu.Lock()
	s.prompts[nameOf(path)] = string(data)
	s.mu.Unlock()
	return nil
}

// Get returns the named prompt.
func (s *Store) Get(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPromptNotFound, name)
	}
	return p, nil
}

// Names lists loaded prompt names.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.prompts))
	for k := range s.prompts {
		out = append(out, k)
	}
	return out
}

// Watch reloads prompts when files are written or created until ctx is
// done. A removed file keeps its last loaded text.
func (s *Store) Watch(ctx context.Context) error {
	if s.dir == "" {
		return errors.New("prompt store has no directory to watch")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != promptExt {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.reload(event.Name); err != nil {
					s.logger.Warn("prompt reload failed", map[string]interface{}{
						"file":  event.Name,
						"error": err.Error(),
					})
					continue
				}
				s.logger.Info("prompt reloaded", map[string]interface{}{
					"name": nameOf(event.Name),
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Error("prompt watcher error", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}()

	return nil
}
