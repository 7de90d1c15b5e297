package engine

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/ajramos/chatfolders/internal/folders"
)

// UnreadCountForFolder derives the unread badge count for one folder from
// the rows currently carrying a visible unread badge. "all" counts every
// distinct badged row; a hidden folder always counts zero.
func (e *Engine) UnreadCountForFolder(folderID string) int {
	unread := e.page.UnreadNames()
	return countUnread(e.svc.Folders(), folderID, unread)
}

func countUnread(list []folders.Folder, folderID string, unread map[folders.DisplayName]struct{}) int {
	if folderID == folders.FolderAll {
		return len(unread)
	}
	f := folders.Find(list, folderID)
	if f == nil || f.Hidden || len(f.Chats) == 0 {
		return 0
	}
	n := 0
	for _, c := range f.Chats {
		if _, ok := unread[c.Name]; ok {
			n++
		}
	}
	return n
}

// badgeText renders a count as the badge numeral, capped at "9+"
func badgeText(n int) string {
	if n > 9 {
		return "9+"
	}
	return strconv.Itoa(n)
}

// refreshBadges recomputes every folder's unread count and re-renders the
// bar. Runs debounced after DOM mutations and on the periodic timer.
func (e *Engine) refreshBadges() {
	if !e.enabled.Load() || !e.page.HasFolderBar() {
		return
	}
	e.renderBar()
}

// renderBar rebuilds the folder bar contents from the current folder data,
// selection and unread counts.
func (e *Engine) renderBar() {
	if !e.page.HasFolderBar() {
		return
	}
	e.page.UpdateFolderBar(e.barHTML())
}

// barHTML renders the folder bar entries: non-hidden folders in display
// order, the selected one marked, each with its unread badge when non-zero.
func (e *Engine) barHTML() string {
	visible := e.svc.VisibleFolders()
	if len(visible) == 0 {
		return `<div class="folders__data">Папок нет</div>`
	}
	unread := e.page.UnreadNames()
	list := e.svc.Folders()
	selected := e.SelectedFolderID()

	var b strings.Builder
	b.WriteString(`<div class='folders__data'>`)
	for _, f := range visible {
		b.WriteString(`<div class='folder' data-id="`)
		b.WriteString(html.EscapeString(f.ID))
		b.WriteString(`"`)
		if f.ID == selected {
			b.WriteString(` data-clicked="true"`)
		}
		b.WriteString(`>`)
		if n := countUnread(list, f.ID, unread); n > 0 {
			b.WriteString(`<div class='folder__badge'>`)
			b.WriteString(badgeText(n))
			b.WriteString(`</div>`)
		}
		b.WriteString(`<div class='folder__text'>`)
		b.WriteString(html.EscapeString(f.Name))
		b.WriteString(`</div></div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}
