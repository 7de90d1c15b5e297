package services

import (
	"context"

	"github.com/ajramos/chatfolders/internal/folders"
)

// Messenger is the request/response channel to the background coordinator.
// UpdateFolders persists before broadcasting, so a local mutation is durable
// by the time other instances hear about it.
type Messenger interface {
	GetState(ctx context.Context) (bool, error)
	SetState(ctx context.Context, enabled bool) error
	GetFolders(ctx context.Context) ([]folders.Folder, error)
	UpdateFolders(ctx context.Context, list []folders.Folder) error
	GetSelectedFolder(ctx context.Context) (string, error)
	SetSelectedFolder(ctx context.Context, id string) error
}

// FolderService handles folder membership business logic
type FolderService interface {
	Folders() []folders.Folder
	VisibleFolders() []folders.Folder
	SetFolders(list []folders.Folder) bool
	AddChatToFolder(ctx context.Context, name folders.DisplayName, folderID string) bool
	RemoveChatFromFolder(ctx context.Context, name folders.DisplayName, folderID string) bool
	IsChatInFolder(name folders.DisplayName, folderID string) bool
	AutoAddClientChat(ctx context.Context, name folders.DisplayName) bool
	CleanupOrphanedChats(ctx context.Context, rendered map[folders.DisplayName]struct{}) bool
	RenameFolder(ctx context.Context, folderID, newName string) bool
	MoveFolder(ctx context.Context, folderID string, up bool) bool
	SetFolderHidden(ctx context.Context, folderID string, hidden bool) bool
	IsValidFolderID(id string) bool
}
