// Package engine keeps the injected folder UI consistent with a live,
// externally-mutated host page. It owns the reconciliation loop: detecting
// host view replacement, re-injecting the folder bar, filtering the
// conversation list by the selected folder and refreshing unread badges.
package engine

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajramos/chatfolders/internal/config"
	"github.com/ajramos/chatfolders/internal/folders"
	"github.com/ajramos/chatfolders/internal/hostdom"
	"github.com/ajramos/chatfolders/internal/poll"
	"github.com/ajramos/chatfolders/internal/services"
)

// State is the lifecycle state of one page instance
type State int32

const (
	StateUninitialized State = iota
	StateLoadingCSS
	StateLoaded
	StateInjected
	StateRemoved
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoadingCSS:
		return "loading-css"
	case StateLoaded:
		return "loaded"
	case StateInjected:
		return "injected"
	case StateRemoved:
		return "removed"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Engine is the application context for one host document instance. All
// subsystems receive it at construction; Start and Stop bound its lifecycle
// instead of constructor side effects.
type Engine struct {
	page      *hostdom.Page
	svc       *services.FolderServiceImpl
	messenger services.Messenger
	logger    *log.Logger

	timing timings

	state   atomic.Int32
	enabled atomic.Bool

	selMu            sync.RWMutex
	selectedFolderID string

	lastActivity atomic.Int64 // unix nanos

	badgeDebounce     *poll.Debouncer
	reconcileDebounce *poll.Debouncer
	filterDebounce    *poll.Debouncer
	orphanDebounce    *poll.Debouncer
	reconciling       atomic.Bool

	broadcasts <-chan services.Broadcast
	startedAt  time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type timings struct {
	injectRetry     time.Duration
	injectAttempts  int
	reconcileDelay  time.Duration
	badgeDelay      time.Duration
	periodicRefresh time.Duration
	warmup          time.Duration
	idleThreshold   time.Duration
	orphanDelay     time.Duration
}

// New creates an engine for one page. broadcasts carries coordinator
// notifications for this instance; it may be nil in tests.
func New(cfg *config.Config, page *hostdom.Page, svc *services.FolderServiceImpl, messenger services.Messenger, broadcasts <-chan services.Broadcast, logger *log.Logger) *Engine {
	t := cfg.Timing
	e := &Engine{
		page:      page,
		svc:       svc,
		messenger: messenger,
		logger:    logger,
		timing: timings{
			injectRetry:     config.Duration(t.InjectRetryInterval, 200*time.Millisecond),
			injectAttempts:  maxInt(t.InjectMaxAttempts, 1),
			reconcileDelay:  config.Duration(t.ReconcileDebounce, 300*time.Millisecond),
			badgeDelay:      config.Duration(t.BadgeDebounce, 30*time.Millisecond),
			periodicRefresh: config.Duration(t.PeriodicRefresh, 3*time.Second),
			warmup:          config.Duration(t.ObserverWarmup, time.Second),
			idleThreshold:   config.Duration(t.IdleThreshold, 30*time.Second),
			orphanDelay:     config.Duration(t.OrphanCleanupDelay, 2*time.Second),
		},
		broadcasts:       broadcasts,
		selectedFolderID: folders.FolderAll,
	}
	e.badgeDebounce = poll.NewDebouncer(e.timing.badgeDelay, e.refreshBadges)
	e.reconcileDebounce = poll.NewDebouncer(e.timing.reconcileDelay, e.reconcile)
	e.filterDebounce = poll.NewDebouncer(e.timing.badgeDelay, e.applySelectedFilter)
	e.orphanDebounce = poll.NewDebouncer(e.timing.orphanDelay, e.runOrphanCleanup)
	svc.SetOnMembershipChanged(e.onMembershipChanged)
	return e
}

func maxInt(v, min int) int {
	if v < min {
		return min
	}
	return v
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// SelectedFolderID returns the folder the list is currently filtered by
func (e *Engine) SelectedFolderID() string {
	e.selMu.RLock()
	defer e.selMu.RUnlock()
	return e.selectedFolderID
}

func (e *Engine) setSelectedFolderID(id string) {
	e.selMu.Lock()
	e.selectedFolderID = id
	e.selMu.Unlock()
}

// Start loads persisted state and brings the page to its enabled or
// disabled steady state. It spawns the observer goroutines; Stop releases
// them.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.startedAt = time.Now()
	e.MarkActivity()

	e.setState(StateLoadingCSS)
	e.page.EnsureStyles()
	e.setState(StateLoaded)

	enabled, err := e.messenger.GetState(e.ctx)
	if err != nil {
		e.logf("load enabled state: %v (assuming enabled)", err)
		enabled = true
	}
	e.enabled.Store(enabled)

	if err := e.svc.Load(e.ctx); err != nil {
		e.logf("load folders: %v", err)
		e.svc.SetFolders(folders.DefaultList())
	}

	// Selected folder persists per browsing profile; reset to "all" when it
	// no longer resolves after an update elsewhere.
	if sel, err := e.messenger.GetSelectedFolder(e.ctx); err == nil {
		if e.svc.IsValidFolderID(sel) {
			e.setSelectedFolderID(sel)
		} else {
			e.setSelectedFolderID(folders.FolderAll)
			_ = e.messenger.SetSelectedFolder(e.ctx, folders.FolderAll)
		}
	}

	e.wg.Add(1)
	go e.observeMutations(e.page.Subscribe())

	if e.broadcasts != nil {
		e.wg.Add(1)
		go e.observeBroadcasts()
	}

	e.wg.Add(1)
	go e.periodicRefresh()

	e.applyState()
	return nil
}

// Stop disconnects observers, stops timers and releases the goroutines.
// Idempotent.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	e.badgeDebounce.Stop()
	e.reconcileDebounce.Stop()
	e.filterDebounce.Stop()
	e.orphanDebounce.Stop()
	e.wg.Wait()
}

// Enabled reports the current global toggle
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// applyState moves the page to the steady state matching the enabled flag
func (e *Engine) applyState() {
	if e.enabled.Load() {
		if res := e.inject(); res == InjectFailed {
			// Not fatal: a later reconciliation pass retries.
			e.logf("injection failed, waiting for host mutation")
		}
		return
	}
	e.teardownInjected()
	e.setState(StateDisabled)
}

// teardownInjected removes everything this engine put on the page
func (e *Engine) teardownInjected() {
	e.page.RemoveFolderBar()
	e.page.RemovePlaceholder()
	for _, row := range e.page.Rows() {
		if row.Hidden {
			e.page.SetRowHidden(row.Name, false)
		}
	}
	e.setState(StateRemoved)
}

// MarkActivity records user input on the host page. Orphan cleanup only
// runs after a quiet period, so entries for conversations the host simply
// has not rendered yet survive.
func (e *Engine) MarkActivity() {
	e.lastActivity.Store(time.Now().UnixNano())
}

// IsUserActive reports whether input was seen within the idle threshold
func (e *Engine) IsUserActive() bool {
	last := time.Unix(0, e.lastActivity.Load())
	return time.Since(last) < e.timing.idleThreshold
}

// observeMutations dispatches mirror-DOM changes to the concern that owns
// them: view replacement to reconciliation, row churn to classification and
// badges, attribute flips to badges.
func (e *Engine) observeMutations(mutations <-chan hostdom.Mutation) {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case m, ok := <-mutations:
			if !ok {
				return
			}
			if !e.enabled.Load() {
				continue
			}
			switch m.Kind {
			case hostdom.MutViewReplaced:
				// Warm-up only protects an attached bar from the page's own
				// first paint. Without a bar the paint is the injection
				// opportunity, not a SPA transition.
				if time.Since(e.startedAt) < e.timing.warmup && e.page.HasFolderBar() {
					continue
				}
				e.reconcileDebounce.Trigger()
			case hostdom.MutChildList:
				e.classifyRows()
				if !e.page.HasFolderBar() {
					e.reconcileDebounce.Trigger()
				}
				e.badgeDebounce.Trigger()
			case hostdom.MutAttributes:
				e.badgeDebounce.Trigger()
			}
		}
	}
}

// observeBroadcasts applies coordinator notifications from other instances
func (e *Engine) observeBroadcasts() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case b, ok := <-e.broadcasts:
			if !ok {
				return
			}
			switch b.Kind {
			case services.BroadcastStateChanged:
				e.enabled.Store(b.Enabled)
				e.applyState()
			case services.BroadcastFoldersChanged:
				if !e.svc.SetFolders(b.Folders) {
					continue
				}
				if !e.svc.IsValidFolderID(e.SelectedFolderID()) {
					e.setSelectedFolderID(folders.FolderAll)
				}
				if e.enabled.Load() {
					e.renderBar()
					e.filterDebounce.Trigger()
				}
			}
		}
	}
}

// periodicRefresh is the correctness backstop: badge counts while injected,
// another injection attempt while not.
func (e *Engine) periodicRefresh() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.timing.periodicRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if !e.enabled.Load() {
				continue
			}
			if e.State() == StateInjected {
				e.badgeDebounce.Trigger()
			} else {
				e.reconcileDebounce.Trigger()
			}
		}
	}
}

// classifyRows opportunistically auto-adds client conversations whenever
// new rows are observed.
func (e *Engine) classifyRows() {
	for _, row := range e.page.Rows() {
		if folders.IsClientChat(row.Name) {
			e.svc.AutoAddClientChat(e.ctx, row.Name)
		}
	}
}

// reconcile tears down stale folder-bar remnants after a host SPA
// transition and re-injects. A re-entrancy guard coalesces overlapping
// triggers.
func (e *Engine) reconcile() {
	if !e.reconciling.CompareAndSwap(false, true) {
		return
	}
	defer e.reconciling.Store(false)

	if !e.enabled.Load() {
		return
	}
	e.page.RemoveFolderBar()
	e.setState(StateRemoved)

	if !e.IsUserActive() {
		e.svc.CleanupOrphanedChats(e.ctx, e.page.RowNames())
	}

	if res := e.inject(); res == InjectFailed {
		e.logf("reconcile: injection failed, waiting for next host mutation")
	}
}

// SelectFolder filters the list by the given folder and persists the choice
func (e *Engine) SelectFolder(id string) {
	if !e.svc.IsValidFolderID(id) {
		return
	}
	e.setSelectedFolderID(id)
	if err := e.messenger.SetSelectedFolder(e.ctx, id); err != nil {
		e.logf("persist selected folder: %v", err)
	}
	e.renderBar()
	e.filterChatsByFolder(id)
}

// HandleChatAction performs an explicit add/remove from the context menu
// and surfaces the transient success notification.
func (e *Engine) HandleChatAction(action string, name folders.DisplayName, folderID string) bool {
	var ok bool
	var message string
	switch action {
	case "add":
		ok = e.svc.AddChatToFolder(e.ctx, name, folderID)
		message = "Чат добавлен в папку"
	case "remove":
		ok = e.svc.RemoveChatFromFolder(e.ctx, name, folderID)
		message = "Чат удален из папки"
	default:
		return false
	}
	if ok {
		e.page.ShowNotification(message)
		e.badgeDebounce.Trigger()
	}
	return ok
}

// OnRowClicked refreshes badges shortly after a conversation is opened,
// when the host clears that row's unread badge.
func (e *Engine) OnRowClicked() {
	e.MarkActivity()
	e.badgeDebounce.Trigger()
}

// onMembershipChanged re-applies the filter when the mutated folder is the
// one currently selected. Runs via the debouncer to break the
// filter → auto-add → filter cycle.
func (e *Engine) onMembershipChanged(folderID string) {
	if folderID == e.SelectedFolderID() {
		e.filterDebounce.Trigger()
	}
	e.badgeDebounce.Trigger()
}

func (e *Engine) applySelectedFilter() {
	if e.enabled.Load() {
		e.filterChatsByFolder(e.SelectedFolderID())
	}
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
