package engine

import (
	"fmt"
	"time"

	"github.com/ajramos/chatfolders/internal/folders"
	"github.com/ajramos/chatfolders/internal/poll"
)

// filterChatsByFolder shows or hides conversation rows by comparing their
// display names against the selected folder's membership. The same row
// enumeration feeds client-chat classification: both need every row, so
// they share one pass.
func (e *Engine) filterChatsByFolder(folderID string) {
	// The list may not have rendered yet: retry once after a short delay,
	// then give up silently. The reconciliation observer retries later.
	if err := poll.Until(e.ctx, 50*time.Millisecond, 2, e.page.HasListRoot); err != nil {
		return
	}

	rows := e.page.Rows()
	for _, row := range rows {
		if folders.IsClientChat(row.Name) {
			e.svc.AutoAddClientChat(e.ctx, row.Name)
		}
	}

	if folderID == folders.FolderAll {
		for _, row := range rows {
			if row.Hidden {
				e.page.SetRowHidden(row.Name, false)
			}
		}
		e.page.RemovePlaceholder()
		return
	}

	list := e.svc.Folders()
	folder := folders.Find(list, folderID)
	if folder == nil {
		return
	}

	if len(folder.Chats) == 0 {
		for _, row := range rows {
			e.page.SetRowHidden(row.Name, true)
		}
		e.page.ShowPlaceholder(noChatsText(folder.Name))
		return
	}

	members := folder.NameSet()
	visible := 0
	for _, row := range rows {
		if _, ok := members[row.Name]; ok {
			e.page.SetRowHidden(row.Name, false)
			visible++
		} else {
			e.page.SetRowHidden(row.Name, true)
		}
	}

	// Membership names with no rendered row are likely stale (renamed or
	// deleted conversations), not merely scrolled out. Schedule a cleanup
	// pass, but only when the user has gone idle.
	if visible < len(folder.Chats) && !e.IsUserActive() {
		e.scheduleOrphanCleanup()
	}

	if visible > 0 {
		e.page.RemovePlaceholder()
	} else {
		e.page.ShowPlaceholder(noChatsText(folder.Name + " (чаты отсутствуют на странице)"))
	}
}

func noChatsText(folderName string) string {
	return fmt.Sprintf("В папке %q нет чатов", folderName)
}

// scheduleOrphanCleanup runs the prune pass after a short delay, re-checking
// the idle gate at fire time. Overlapping requests coalesce.
func (e *Engine) scheduleOrphanCleanup() {
	e.orphanDebounce.Trigger()
}

func (e *Engine) runOrphanCleanup() {
	if e.ctx == nil || e.ctx.Err() != nil || e.IsUserActive() || !e.enabled.Load() {
		return
	}
	if e.svc.CleanupOrphanedChats(e.ctx, e.page.RowNames()) {
		e.logf("orphan cleanup removed stale membership records")
	}
}
