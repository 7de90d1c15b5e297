package services

import "github.com/ajramos/chatfolders/internal/folders"

// BroadcastKind names a fire-and-forget notification from the coordinator
type BroadcastKind string

const (
	BroadcastStateChanged   BroadcastKind = "stateChanged"
	BroadcastFoldersChanged BroadcastKind = "foldersChanged"
)

// Broadcast is delivered to every open instance after a persisted change.
// Delivery is best-effort and carries no ordering guarantee relative to an
// instance's own pending local mutations.
type Broadcast struct {
	Kind    BroadcastKind    `json:"kind"`
	Enabled bool             `json:"isEnabled,omitempty"`
	Folders []folders.Folder `json:"folders,omitempty"`
}
