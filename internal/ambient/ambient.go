// Package ambient runs the background cadence: periodic collection per
// notebook schedule, memory consolidation, profile hot-reload, and
// queue-expiry notifications.
package ambient

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"dossier/internal/gatherer"
	"dossier/internal/logging"
	"dossier/internal/memory"
	"dossier/internal/profile"
	"dossier/internal/supervisor"
	"dossier/internal/types"
)

const (
	tickInterval        = 10 * time.Minute
	expiryNoticeWindow  = 2 // days before queue expiry worth flagging
)

// Orchestrator drives the ambient loop.
type Orchestrator struct {
	dataDir    string
	supervisor *supervisor.Supervisor
	registry   *gatherer.Registry
	profiles   *profile.Store
	memory     *memory.Store
	notebooks  types.NotebookStore
	notifier   types.Notifier

	mu      sync.Mutex
	lastRun map[string]time.Time
	dirty   map[string]bool // notebooks whose profile changed since last tick
}

// New creates an Orchestrator.
func New(dataDir string, sup *supervisor.Supervisor, reg *gatherer.Registry, profiles *profile.Store, mem *memory.Store, notebooks types.NotebookStore, notifier types.Notifier) *Orchestrator {
	return &Orchestrator{
		dataDir:    dataDir,
		supervisor: sup,
		registry:   reg,
		profiles:   profiles,
		memory:     mem,
		notebooks:  notebooks,
		notifier:   notifier,
		lastRun:    map[string]time.Time{},
		dirty:      map[string]bool{},
	}
}

// Run blocks until ctx is cancelled, ticking the ambient cycle and watching
// the notebooks directory for profile edits between ticks.
func (o *Orchestrator) Run(ctx context.Context) error {
	logging.Ambient("ambient orchestrator starting, tick every %s", tickInterval)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Get(logging.CategoryAmbient).Warn("profile watcher unavailable: %v", err)
	} else {
		defer watcher.Close()
		if werr := watcher.Add(filepath.Join(o.dataDir, "notebooks")); werr != nil {
			logging.AmbientDebug("watching notebooks dir: %v", werr)
		}
		go o.watchProfiles(ctx, watcher)
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	// First pass immediately so a fresh start does not wait a full tick.
	o.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logging.Ambient("ambient orchestrator stopping")
			return ctx.Err()
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

func (o *Orchestrator) watchProfiles(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, "collector.yaml") {
				// New notebook directories need watching too.
				if ev.Op&fsnotify.Create != 0 {
					_ = watcher.Add(ev.Name)
				}
				continue
			}
			nb := filepath.Base(filepath.Dir(ev.Name))
			o.mu.Lock()
			o.dirty[nb] = true
			o.mu.Unlock()
			logging.AmbientDebug("profile change detected for %s", nb)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.AmbientDebug("profile watcher error: %v", err)
		}
	}
}

// Tick runs one ambient cycle: due collections, memory consolidation, and
// queue-expiry notices. Idempotent; safe to call again on failure.
func (o *Orchestrator) Tick(ctx context.Context) {
	timer := logging.StartTimer(logging.CategoryAmbient, "Tick")
	defer timer.Stop()

	due := o.dueNotebooks(ctx)
	if len(due) > 0 {
		result := o.supervisor.OrchestrateCollection(ctx, due)
		o.mu.Lock()
		now := time.Now()
		for _, id := range due {
			o.lastRun[id] = now
		}
		o.mu.Unlock()
		for _, w := range result.Warnings {
			logging.AmbientDebug("orchestration warning: %s", w)
		}
	}

	if err := o.memory.Consolidate(ctx); err != nil {
		logging.Get(logging.CategoryAmbient).Warn("memory consolidation: %v", err)
	}

	o.notifyExpiring(ctx)
}

// dueNotebooks selects notebooks whose schedule has elapsed. Manual-mode
// notebooks never run ambiently; a dirty profile is re-read by virtue of the
// supervisor loading fresh profiles per run.
func (o *Orchestrator) dueNotebooks(ctx context.Context) []string {
	ids, err := o.notebooks.List(ctx)
	if err != nil {
		logging.Get(logging.CategoryAmbient).Warn("listing notebooks: %v", err)
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	var due []string
	now := time.Now()
	for _, id := range ids {
		p, err := o.profiles.Load(id)
		if err != nil {
			logging.AmbientDebug("profile %s unreadable: %v", id, err)
			continue
		}
		if p.Intent == "" || p.CollectionMode == types.CollectionManual {
			continue
		}
		interval := frequencyInterval(p.Schedule.Frequency)
		if o.dirty[id] || now.Sub(o.lastRun[id]) >= interval {
			due = append(due, id)
			delete(o.dirty, id)
		}
	}
	return due
}

func frequencyInterval(freq string) time.Duration {
	switch freq {
	case "hourly":
		return time.Hour
	case "weekly":
		return 7 * 24 * time.Hour
	default: // daily
		return 24 * time.Hour
	}
}

// notifyExpiring surfaces queue entries whose TTL runs out soon.
func (o *Orchestrator) notifyExpiring(ctx context.Context) {
	ids, err := o.notebooks.List(ctx)
	if err != nil {
		return
	}
	for _, id := range ids {
		g := o.registry.Get(id)
		if g == nil {
			continue
		}
		for _, entry := range g.GetExpiringSoon(expiryNoticeWindow) {
			if err := o.notifier.NotifySourceUpdated(ctx, types.SourceEvent{
				NotebookID: id,
				SourceID:   entry.Item.ID,
				Kind:       "expiring",
				Title:      entry.Item.Title,
			}); err != nil {
				logging.AmbientDebug("expiry notice for %s: %v", entry.Item.ID, err)
			}
		}
	}
}
