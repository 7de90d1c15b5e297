package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ajramos/chatfolders/internal/folders"
)

// FolderServiceImpl implements FolderService. It holds the in-memory folder
// list for one page instance; every mutation that should be visible
// elsewhere persists through the Messenger, which writes before
// broadcasting. Membership operations return false instead of erroring:
// an action referencing an unknown folder or empty name silently does not
// happen.
type FolderServiceImpl struct {
	mu        sync.RWMutex
	list      []folders.Folder
	messenger Messenger
	logger    *log.Logger

	// onMembershipChanged is invoked after a successful membership mutation
	// so the page engine can re-apply the visible filter. Set once during
	// wiring to avoid circular dependencies.
	onMembershipChanged func(folderID string)

	clock func() time.Time
}

// NewFolderService creates a new folder service
func NewFolderService(messenger Messenger, logger *log.Logger) *FolderServiceImpl {
	return &FolderServiceImpl{
		messenger: messenger,
		logger:    logger,
		clock:     time.Now,
	}
}

// SetOnMembershipChanged registers the filter re-apply hook.
// This is called after initialization to avoid circular dependencies.
func (s *FolderServiceImpl) SetOnMembershipChanged(fn func(folderID string)) {
	s.onMembershipChanged = fn
}

// Load fetches the folder list from the coordinator, seeding and
// normalizing as needed.
func (s *FolderServiceImpl) Load(ctx context.Context) error {
	list, err := s.messenger.GetFolders(ctx)
	if err != nil {
		return err
	}
	normalized, _ := folders.Normalize(list)
	s.mu.Lock()
	s.list = normalized
	s.mu.Unlock()
	return nil
}

// Folders returns a copy of the current folder list
func (s *FolderServiceImpl) Folders() []folders.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return folders.Clone(s.list)
}

// VisibleFolders returns the non-hidden folders in display order
func (s *FolderServiceImpl) VisibleFolders() []folders.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return folders.Visible(folders.Clone(s.list))
}

// SetFolders replaces the in-memory list with data received from a
// broadcast. Invalid data is discarded, keeping the last-known-good state.
func (s *FolderServiceImpl) SetFolders(list []folders.Folder) bool {
	if !folders.Validate(list) {
		s.logf("SetFolders: discarding invalid folder data")
		return false
	}
	normalized, _ := folders.Normalize(list)
	s.mu.Lock()
	s.list = normalized
	s.mu.Unlock()
	return true
}

// IsValidFolderID reports whether a folder with the given id exists
func (s *FolderServiceImpl) IsValidFolderID(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return folders.ContainsID(s.list, id)
}

// IsChatInFolder reports membership of a display name in a folder
func (s *FolderServiceImpl) IsChatInFolder(name folders.DisplayName, folderID string) bool {
	if name == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := folders.Find(s.list, folderID)
	return f != nil && f.HasChat(name)
}

// AddChatToFolder appends a membership record. Returns false for an empty
// name, an unknown folder id, or an existing membership.
func (s *FolderServiceImpl) AddChatToFolder(ctx context.Context, name folders.DisplayName, folderID string) bool {
	return s.add(ctx, name, folderID, false)
}

// AutoAddClientChat adds a conversation matching the client pattern to the
// well-known clients folder, tagged as an automatic addition.
func (s *FolderServiceImpl) AutoAddClientChat(ctx context.Context, name folders.DisplayName) bool {
	if !folders.IsClientChat(name) {
		return false
	}
	return s.add(ctx, name, folders.FolderClients, true)
}

func (s *FolderServiceImpl) add(ctx context.Context, name folders.DisplayName, folderID string, auto bool) bool {
	if name == "" {
		return false
	}
	s.mu.Lock()
	f := folders.Find(s.list, folderID)
	if f == nil || f.HasChat(name) {
		s.mu.Unlock()
		return false
	}
	f.Chats = append(f.Chats, folders.ChatRef{
		Name:      name,
		AddedAt:   s.clock(),
		AutoAdded: auto,
	})
	snapshot := folders.Clone(s.list)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.membershipChanged(folderID)
	return true
}

// RemoveChatFromFolder drops a membership record. Returns false when the
// name was not a member.
func (s *FolderServiceImpl) RemoveChatFromFolder(ctx context.Context, name folders.DisplayName, folderID string) bool {
	if name == "" {
		return false
	}
	s.mu.Lock()
	f := folders.Find(s.list, folderID)
	if f == nil {
		s.mu.Unlock()
		return false
	}
	kept := f.Chats[:0]
	for _, c := range f.Chats {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	removed := len(kept) < len(f.Chats)
	f.Chats = kept
	var snapshot []folders.Folder
	if removed {
		snapshot = folders.Clone(s.list)
	}
	s.mu.Unlock()

	if !removed {
		return false
	}
	s.persist(ctx, snapshot)
	s.membershipChanged(folderID)
	return true
}

// CleanupOrphanedChats drops membership records whose name matches no
// currently rendered conversation. Persists only when something changed.
// Callers gate this behind the user-idle check so entries for conversations
// merely not yet rendered survive slow page loads.
func (s *FolderServiceImpl) CleanupOrphanedChats(ctx context.Context, rendered map[folders.DisplayName]struct{}) bool {
	s.mu.Lock()
	if len(s.list) == 0 {
		s.mu.Unlock()
		return false
	}
	changed := false
	for i := range s.list {
		f := &s.list[i]
		if len(f.Chats) == 0 {
			continue
		}
		kept := f.Chats[:0]
		for _, c := range f.Chats {
			if _, ok := rendered[c.Name]; ok {
				kept = append(kept, c)
			}
		}
		if len(kept) != len(f.Chats) {
			changed = true
		}
		f.Chats = kept
	}
	var snapshot []folders.Folder
	if changed {
		snapshot = folders.Clone(s.list)
	}
	s.mu.Unlock()

	if changed {
		s.persist(ctx, snapshot)
	}
	return changed
}

// RenameFolder updates a folder's display name; the id never changes
func (s *FolderServiceImpl) RenameFolder(ctx context.Context, folderID, newName string) bool {
	newName = folders.TrimName(newName)
	if newName == "" {
		return false
	}
	s.mu.Lock()
	f := folders.Find(s.list, folderID)
	if f == nil || f.Name == newName {
		s.mu.Unlock()
		return false
	}
	f.Name = newName
	snapshot := folders.Clone(s.list)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	return true
}

// MoveFolder shifts a folder one position up or down in display order.
// The synthetic "all" folder stays pinned first.
func (s *FolderServiceImpl) MoveFolder(ctx context.Context, folderID string, up bool) bool {
	if folderID == folders.FolderAll {
		return false
	}
	s.mu.Lock()
	idx := -1
	for i := range s.list {
		if s.list[i].ID == folderID {
			idx = i
			break
		}
	}
	target := idx + 1
	if up {
		target = idx - 1
	}
	// position 0 is reserved for "all"
	if idx < 1 || target < 1 || target >= len(s.list) {
		s.mu.Unlock()
		return false
	}
	s.list[idx], s.list[target] = s.list[target], s.list[idx]
	snapshot := folders.Clone(s.list)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	return true
}

// SetFolderHidden toggles a folder out of the visible bar and the
// add-to-folder menu; its data is retained.
func (s *FolderServiceImpl) SetFolderHidden(ctx context.Context, folderID string, hidden bool) bool {
	if folderID == folders.FolderAll {
		return false
	}
	s.mu.Lock()
	f := folders.Find(s.list, folderID)
	if f == nil || f.Hidden == hidden {
		s.mu.Unlock()
		return false
	}
	f.Hidden = hidden
	snapshot := folders.Clone(s.list)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	return true
}

func (s *FolderServiceImpl) persist(ctx context.Context, snapshot []folders.Folder) {
	if s.messenger == nil {
		return
	}
	if err := s.messenger.UpdateFolders(ctx, snapshot); err != nil {
		// Absorbed: the in-memory state stays authoritative for this page,
		// the next successful mutation re-persists everything.
		s.logf("persist folders: %v", err)
	}
}

func (s *FolderServiceImpl) membershipChanged(folderID string) {
	if s.onMembershipChanged != nil {
		s.onMembershipChanged(folderID)
	}
}

func (s *FolderServiceImpl) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
