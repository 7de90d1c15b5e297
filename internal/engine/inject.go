package engine

import (
	"errors"

	"github.com/ajramos/chatfolders/internal/folders"
	"github.com/ajramos/chatfolders/internal/poll"
)

// InjectResult reports the outcome of an injection pass
type InjectResult int

const (
	Injected InjectResult = iota
	AlreadyInjected
	InjectFailed
)

// inject ensures exactly one folder bar is attached to the host header.
// When the header has not rendered yet it retries on a bounded schedule;
// exhaustion is reported, not raised, because a later reconciliation pass
// retries anyway.
func (e *Engine) inject() InjectResult {
	if e.page.HasFolderBar() {
		e.setState(StateInjected)
		return AlreadyInjected
	}

	err := poll.Until(e.ctx, e.timing.injectRetry, e.timing.injectAttempts, e.page.HasHeader)
	if err != nil {
		if !errors.Is(err, poll.ErrExhausted) {
			return InjectFailed // cancelled
		}
		e.logf("inject: header not found after %d attempts", e.timing.injectAttempts)
		return InjectFailed
	}

	if !e.page.InsertFolderBar(e.barHTML()) {
		return InjectFailed
	}
	e.setState(StateInjected)

	e.applySavedFolder()
	e.badgeDebounce.Trigger()
	return Injected
}

// applySavedFolder re-applies the persisted folder selection after an
// injection, falling back to "all" when the folder disappeared.
func (e *Engine) applySavedFolder() {
	id := e.SelectedFolderID()
	if !e.svc.IsValidFolderID(id) {
		id = folders.FolderAll
		e.setSelectedFolderID(id)
	}
	e.renderBar()
	e.filterChatsByFolder(id)
}
