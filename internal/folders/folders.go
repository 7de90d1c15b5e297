// Package folders defines the folder data model shared by the store, the
// coordinator and the page engine.
package folders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Well-known system folder ids. FolderAll is synthetic: it is always first
// in display order, never carries persisted membership and always shows the
// union of all known conversations.
const (
	FolderAll     = "all"
	FolderPrivate = "private"
	FolderClients = "clients"
	FolderOthers  = "others"
)

const (
	// MaxNameRunes bounds user-edited folder names
	MaxNameRunes = 30
	// MaxChatNameRunes bounds conversation names captured from the host page
	MaxChatNameRunes = 100
)

// DisplayName is a conversation's rendered display name. It is the only
// identity available for a conversation: the host page exposes no stable id,
// so two conversations rendering the same name are indistinguishable. All
// name-based matching goes through this type so a stable-id source can be
// substituted later without touching call sites.
type DisplayName string

// CaptureName normalizes a raw display name read from the host page: trims
// whitespace, strips angle brackets and caps the length.
func CaptureName(raw string) DisplayName {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	runes := []rune(s)
	if len(runes) > MaxChatNameRunes {
		s = string(runes[:MaxChatNameRunes])
	}
	return DisplayName(s)
}

// ChatRef is a membership record: one conversation inside one folder,
// unique by name within the folder.
type ChatRef struct {
	Name      DisplayName `json:"name"`
	AddedAt   time.Time   `json:"addedAt"`
	AutoAdded bool        `json:"autoAdded"`
}

// Folder is a named, orderable, hideable grouping of conversations.
type Folder struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Chats  []ChatRef `json:"chats"`
	Hidden bool      `json:"hidden"`
}

// HasChat reports whether name is a member of the folder
func (f *Folder) HasChat(name DisplayName) bool {
	for _, c := range f.Chats {
		if c.Name == name {
			return true
		}
	}
	return false
}

// NameSet returns the folder's membership as a set for row matching
func (f *Folder) NameSet() map[DisplayName]struct{} {
	set := make(map[DisplayName]struct{}, len(f.Chats))
	for _, c := range f.Chats {
		set[c.Name] = struct{}{}
	}
	return set
}

// NewUserFolder creates a user folder with a generated id
func NewUserFolder(name string) Folder {
	return Folder{ID: uuid.NewString(), Name: TrimName(name)}
}

// TrimName normalizes a user-edited folder name
func TrimName(name string) string {
	s := strings.TrimSpace(name)
	runes := []rune(s)
	if len(runes) > MaxNameRunes {
		s = string(runes[:MaxNameRunes])
	}
	return s
}

// DefaultList returns the folder set created on first run
func DefaultList() []Folder {
	return []Folder{
		{ID: FolderAll, Name: "Все"},
		{ID: FolderPrivate, Name: "Личные"},
		{ID: FolderClients, Name: "Клиенты"},
		{ID: FolderOthers, Name: "Другое"},
	}
}

// systemDefaults is the migration source for missing system folders
var systemDefaults = []Folder{
	{ID: FolderAll, Name: "Все"},
	{ID: FolderPrivate, Name: "Личные"},
	{ID: FolderClients, Name: "Клиенты"},
	{ID: FolderOthers, Name: "Другое"},
}

// Find returns the folder with the given id, or nil
func Find(list []Folder, id string) *Folder {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

// ContainsID reports whether a folder with the given id exists in the list
func ContainsID(list []Folder, id string) bool {
	return Find(list, id) != nil
}

// Normalize applies the migration contract to a folder list loaded from
// storage or received over the wire: missing system folders are appended,
// the synthetic "all" folder is forced to the first position, and the "all"
// folder's membership is cleared (it never persists explicit membership).
// Returns the normalized list and whether anything changed.
func Normalize(list []Folder) ([]Folder, bool) {
	changed := false

	for _, def := range systemDefaults {
		if !ContainsID(list, def.ID) {
			list = append(list, def)
			changed = true
		}
	}

	for i := range list {
		if list[i].ID == FolderAll {
			if len(list[i].Chats) > 0 {
				list[i].Chats = nil
				changed = true
			}
			if i != 0 {
				all := list[i]
				list = append(list[:i], list[i+1:]...)
				list = append([]Folder{all}, list...)
				changed = true
			}
			break
		}
	}

	return list, changed
}

// Validate checks the shape of a folder list received from storage or a
// broadcast. Invalid lists are discarded by callers, keeping the
// last-known-good state in memory.
func Validate(list []Folder) bool {
	if list == nil {
		return false
	}
	seen := make(map[string]struct{}, len(list))
	for _, f := range list {
		if f.ID == "" || f.Name == "" {
			return false
		}
		if _, dup := seen[f.ID]; dup {
			return false
		}
		seen[f.ID] = struct{}{}
	}
	return true
}

// Visible filters out hidden folders for display in the folder bar and the
// add-to-folder menu.
func Visible(list []Folder) []Folder {
	out := make([]Folder, 0, len(list))
	for _, f := range list {
		if !f.Hidden {
			out = append(out, f)
		}
	}
	return out
}

// Clone deep-copies a folder list so broadcast recipients cannot alias the
// coordinator's state.
func Clone(list []Folder) []Folder {
	out := make([]Folder, len(list))
	for i, f := range list {
		out[i] = f
		if f.Chats != nil {
			out[i].Chats = append([]ChatRef(nil), f.Chats...)
		}
	}
	return out
}
