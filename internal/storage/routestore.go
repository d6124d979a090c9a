// Package storage contains the file-backed stores: route files, the batch
// spool, and the latest telemetry snapshot.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// RouteStore loads and watches route YAML files.
type RouteStore interface {
	Load(path string) (*models.RouteFile, error)
	// Watch invokes onChange with the reloaded route every time the file
	// changes, until the context is cancelled. Reload errors are reported
	// through onError and do not stop the watch.
	Watch(ctx context.Context, path string, onChange func(*models.RouteFile), onError func(error)) error
}

type fileRouteStore struct{}

// NewRouteStore creates a file-backed RouteStore.
func NewRouteStore() RouteStore {
	return &fileRouteStore{}
}

// Load reads and validates a route file.
func (s *fileRouteStore) Load(path string) (*models.RouteFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading route file: %w", err)
	}

	var route models.RouteFile
	if err := yaml.Unmarshal(raw, &route); err != nil {
		return nil, fmt.Errorf("parsing route file %s: %w", path, err)
	}

	if err := ValidateRoute(&route); err != nil {
		return nil, fmt.Errorf("route file %s: %w", path, err)
	}
	return &route, nil
}

// ValidateRoute checks a route file for structural problems.
func ValidateRoute(route *models.RouteFile) error {
	if route == nil {
		return fmt.Errorf("route is nil")
	}
	if len(route.Poses) == 0 {
		return fmt.Errorf("route has no poses")
	}
	seen := make(map[string]bool, len(route.Poses))
	for i, p := range route.Poses {
		if p.Name != "" {
			if seen[p.Name] {
				return fmt.Errorf("pose %d: duplicate name %q", i, p.Name)
			}
			seen[p.Name] = true
		}
	}
	return nil
}

// Watch re-loads the route whenever the file is written. Editors often
// replace the file (rename + create), so the parent directory is watched
// and events are filtered by name.
func (s *fileRouteStore) Watch(ctx context.Context, path string, onChange func(*models.RouteFile), onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating route watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	var debounce *time.Timer
	reload := func() {
		route, err := s.Load(target)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(route)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Debounce bursts of write events from a single save.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(fmt.Errorf("route watcher: %w", err))
			}
		}
	}
}
