// Package coordinator is the privileged background side of the system: it
// owns the persistent folder store, answers request/response messages from
// page agents and the management UI, and fans persisted changes back out to
// every attached instance as best-effort broadcasts.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ajramos/chatfolders/internal/folders"
	"github.com/ajramos/chatfolders/internal/services"
	"github.com/ajramos/chatfolders/internal/store"
)

// Coordinator implements services.Messenger backed by the SQLite store.
// Every write persists before it broadcasts, so a remote instance never
// hears about data that could still be lost.
type Coordinator struct {
	store  *store.Store
	logger *log.Logger

	mu     sync.Mutex
	subs   map[int]chan services.Broadcast
	nextID int
}

// New creates a coordinator on top of an open store
func New(st *store.Store, logger *log.Logger) *Coordinator {
	return &Coordinator{
		store:  st,
		logger: logger,
		subs:   make(map[int]chan services.Broadcast),
	}
}

// Subscribe attaches a broadcast listener. Delivery is fire-and-forget: a
// listener that stopped draining loses notifications instead of blocking
// the coordinator.
func (c *Coordinator) Subscribe() (int, <-chan services.Broadcast) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	ch := make(chan services.Broadcast, 16)
	c.subs[id] = ch
	return id, ch
}

// Unsubscribe detaches a broadcast listener and closes its channel
func (c *Coordinator) Unsubscribe(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Coordinator) broadcast(b services.Broadcast) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- b:
		default:
			// Unreachable instance: swallowed, not reported.
		}
	}
}

// GetState returns the global enabled flag
func (c *Coordinator) GetState(ctx context.Context) (bool, error) {
	return c.store.Enabled(ctx)
}

// SetState persists the enabled flag and notifies all instances
func (c *Coordinator) SetState(ctx context.Context, enabled bool) error {
	if err := c.store.SetEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	c.broadcast(services.Broadcast{Kind: services.BroadcastStateChanged, Enabled: enabled})
	return nil
}

// GetFolders returns the persisted folder list
func (c *Coordinator) GetFolders(ctx context.Context) ([]folders.Folder, error) {
	return c.store.Folders(ctx)
}

// UpdateFolders validates, persists and broadcasts a new folder list. When
// the previously selected folder no longer resolves it is reset to "all".
func (c *Coordinator) UpdateFolders(ctx context.Context, list []folders.Folder) error {
	if !folders.Validate(list) {
		return services.ErrDataInvalid
	}
	normalized, _ := folders.Normalize(folders.Clone(list))

	if err := c.store.SaveFolders(ctx, normalized); err != nil {
		return fmt.Errorf("save folders: %w", err)
	}

	sel, err := c.store.SelectedFolder(ctx)
	if err == nil && !folders.ContainsID(normalized, sel) {
		if err := c.store.SetSelectedFolder(ctx, folders.FolderAll); err != nil {
			c.logf("reset selected folder: %v", err)
		}
	}

	c.broadcast(services.Broadcast{Kind: services.BroadcastFoldersChanged, Folders: folders.Clone(normalized)})
	return nil
}

// GetSelectedFolder returns the persisted folder selection
func (c *Coordinator) GetSelectedFolder(ctx context.Context) (string, error) {
	return c.store.SelectedFolder(ctx)
}

// SetSelectedFolder persists the folder selection. Not broadcast: the
// selection is per browsing profile, not per instance action.
func (c *Coordinator) SetSelectedFolder(ctx context.Context, id string) error {
	return c.store.SetSelectedFolder(ctx, id)
}

func (c *Coordinator) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

var _ services.Messenger = (*Coordinator)(nil)
