// Package hostdom maintains a mirror of the host chat page's DOM.
//
// The browser agent streams the page's markup over the wire; this package
// parses it, answers the structural queries the engine needs (conversation
// rows, display names, unread badges, the injection anchor) and records the
// DOM operations the engine performs so the transport can forward them to
// the agent. The host markup is not a stable contract: every lookup here
// fails soft (empty result, false) instead of raising.
package hostdom

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ajramos/chatfolders/internal/folders"
)

// Selectors identify the host page structures the engine cares about
type Selectors struct {
	ListRoot      string // conversation list container
	Row           string // one conversation row
	RowName       string // display-name element inside a row
	RowBadge      string // unread badge element inside a row
	Header        string // header container used as the injection anchor
	FolderBarAttr string // marker attribute of the injected folder bar
}

// Classes and attributes written onto host rows when filtering
const (
	hiddenClass      = "ext-hidden-chat"
	hiddenAttr       = "data-ext-hidden"
	placeholderClass = "ext-no-chats-message"
)

// MutationKind classifies a change to the mirror
type MutationKind int

const (
	// MutChildList signals rows were added or removed under the list root
	MutChildList MutationKind = iota
	// MutAttributes signals attribute changes on rows or badges
	MutAttributes
	// MutViewReplaced signals the host replaced its view (SPA transition):
	// a new subtree containing the list root or the header appeared
	MutViewReplaced
)

// Mutation is one observed change to the mirror DOM
type Mutation struct {
	Kind MutationKind
}

// Row is a read-only view of one conversation row
type Row struct {
	Name            folders.DisplayName
	HasVisibleBadge bool
	Hidden          bool // hidden by the extension's own filter marking
}

// Page is the mirror DOM for a single host document instance. All methods
// are safe for use from the transport and engine goroutines.
type Page struct {
	mu              sync.Mutex
	sel             Selectors
	doc             *goquery.Document
	ops             []Op
	stylesRequested bool

	subMu sync.Mutex
	subs  []chan Mutation
}

// NewPage creates an empty mirror with the given selectors
func NewPage(sel Selectors) *Page {
	return &Page{sel: sel}
}

func (p *Page) barSelector() string {
	return fmt.Sprintf("[%s]", p.sel.FolderBarAttr)
}

// Subscribe returns a channel of mutation notifications. Delivery is
// best-effort: when a subscriber lags, overlapping notifications are
// coalesced by dropping, not queued.
func (p *Page) Subscribe() <-chan Mutation {
	ch := make(chan Mutation, 16)
	p.subMu.Lock()
	p.subs = append(p.subs, ch)
	p.subMu.Unlock()
	return ch
}

// Close releases all subscriber channels
func (p *Page) Close() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		close(ch)
	}
	p.subs = nil
}

func (p *Page) notify(kind MutationKind) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- Mutation{Kind: kind}:
		default:
		}
	}
}

// ApplySnapshot replaces the whole mirror with freshly received markup.
// When the new document contains the list root or the header, subscribers
// see a MutViewReplaced, mirroring a SPA transition on the live page.
func (p *Page) ApplySnapshot(markup string) error {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	p.mu.Lock()
	p.doc = doc
	hasView := doc.Find(p.sel.ListRoot).Length() > 0 || doc.Find(p.sel.Header).Length() > 0
	p.mu.Unlock()

	if hasView {
		p.notify(MutViewReplaced)
	}
	return nil
}

// ApplyListUpdate replaces the children of the list root with new row
// markup, as happens when the host re-renders its conversation list in
// place. No-op when the list root is absent from the mirror.
func (p *Page) ApplyListUpdate(rowsMarkup string) error {
	p.mu.Lock()
	if p.doc == nil {
		p.mu.Unlock()
		return nil
	}
	list := p.doc.Find(p.sel.ListRoot)
	if list.Length() == 0 {
		p.mu.Unlock()
		return nil
	}
	list.Empty()
	list.AppendHtml(rowsMarkup)
	p.mu.Unlock()

	p.notify(MutChildList)
	return nil
}

// NotifyAttributesChanged records an attribute-only change reported by the
// agent (badge shown/hidden, row class flips) without replacing markup.
func (p *Page) NotifyAttributesChanged() {
	p.notify(MutAttributes)
}

// HasListRoot reports whether the conversation list container is present
func (p *Page) HasListRoot() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc != nil && p.doc.Find(p.sel.ListRoot).Length() > 0
}

// HasHeader reports whether the injection anchor is present
func (p *Page) HasHeader() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc != nil && p.doc.Find(p.sel.Header).Length() > 0
}

// HasFolderBar reports whether a previously injected folder bar is present
func (p *Page) HasFolderBar() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc != nil && p.doc.Find(p.barSelector()).Length() > 0
}

func (p *Page) rowName(row *goquery.Selection) folders.DisplayName {
	nameEl := row.Find(p.sel.RowName)
	if nameEl.Length() == 0 {
		return folders.CaptureName("Без названия")
	}
	return folders.CaptureName(nameEl.First().Text())
}

func elementHidden(s *goquery.Selection) bool {
	if _, hidden := s.Attr("hidden"); hidden {
		return true
	}
	style := strings.ReplaceAll(s.AttrOr("style", ""), " ", "")
	return strings.Contains(style, "display:none")
}

// badgeVisible approximates the live page's layout-box check: the badge must
// be attached and neither it nor its owning row may carry the hidden
// attribute or an inline display:none.
func badgeVisible(row, badge *goquery.Selection) bool {
	if badge.Length() == 0 {
		return false
	}
	return !elementHidden(badge) && !elementHidden(row)
}

// Rows enumerates the conversation rows currently in the mirror. Returns
// nil when the list root has not rendered yet.
func (p *Page) Rows() []Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil
	}
	list := p.doc.Find(p.sel.ListRoot)
	if list.Length() == 0 {
		return nil
	}
	var rows []Row
	list.Find(p.sel.Row).Each(func(_ int, s *goquery.Selection) {
		_, hidden := s.Attr(hiddenAttr)
		rows = append(rows, Row{
			Name:            p.rowName(s),
			HasVisibleBadge: badgeVisible(s, s.Find(p.sel.RowBadge).First()),
			Hidden:          hidden,
		})
	})
	return rows
}

// RowNames returns the set of display names currently rendered
func (p *Page) RowNames() map[folders.DisplayName]struct{} {
	rows := p.Rows()
	set := make(map[folders.DisplayName]struct{}, len(rows))
	for _, r := range rows {
		set[r.Name] = struct{}{}
	}
	return set
}

// UnreadNames returns the display names of rows carrying a visible unread
// badge, deduplicated by name.
func (p *Page) UnreadNames() map[folders.DisplayName]struct{} {
	set := make(map[folders.DisplayName]struct{})
	for _, r := range p.Rows() {
		if r.HasVisibleBadge {
			set[r.Name] = struct{}{}
		}
	}
	return set
}

// SetRowHidden marks or unmarks every row with the given display name as
// filtered out, both in the mirror and on the live page.
func (p *Page) SetRowHidden(name folders.DisplayName, hidden bool) {
	p.mu.Lock()
	if p.doc == nil {
		p.mu.Unlock()
		return
	}
	p.doc.Find(p.sel.ListRoot).Find(p.sel.Row).Each(func(_ int, s *goquery.Selection) {
		if p.rowName(s) != name {
			return
		}
		if hidden {
			s.AddClass(hiddenClass)
			s.SetAttr(hiddenAttr, "true")
		} else {
			s.RemoveClass(hiddenClass)
			s.RemoveAttr(hiddenAttr)
		}
	})
	p.mu.Unlock()

	p.record(Op{Kind: OpSetRowHidden, Target: string(name), Hidden: hidden})
}

// InsertFolderBar attaches the folder bar markup to the header container.
// Returns false when the header is not present in the mirror.
func (p *Page) InsertFolderBar(markup string) bool {
	p.mu.Lock()
	if p.doc == nil {
		p.mu.Unlock()
		return false
	}
	header := p.doc.Find(p.sel.Header)
	if header.Length() == 0 {
		p.mu.Unlock()
		return false
	}
	header.First().AppendHtml(fmt.Sprintf(`<div %s="true">%s</div>`, p.sel.FolderBarAttr, markup))
	p.mu.Unlock()

	p.record(Op{Kind: OpInsertFolderBar, HTML: markup})
	return true
}

// UpdateFolderBar replaces the contents of the injected folder bar.
// Returns false when no bar is attached.
func (p *Page) UpdateFolderBar(markup string) bool {
	p.mu.Lock()
	if p.doc == nil {
		p.mu.Unlock()
		return false
	}
	bar := p.doc.Find(p.barSelector())
	if bar.Length() == 0 {
		p.mu.Unlock()
		return false
	}
	bar.Empty()
	bar.AppendHtml(markup)
	p.mu.Unlock()

	p.record(Op{Kind: OpUpdateFolderBar, HTML: markup})
	return true
}

// RemoveFolderBar detaches every folder bar from the mirror. Idempotent;
// the removal op is only recorded when something was actually attached.
func (p *Page) RemoveFolderBar() {
	p.mu.Lock()
	removed := false
	if p.doc != nil {
		bar := p.doc.Find(p.barSelector())
		if bar.Length() > 0 {
			bar.Remove()
			removed = true
		}
	}
	p.mu.Unlock()

	if removed {
		p.record(Op{Kind: OpRemoveFolderBar})
	}
}

// ShowPlaceholder inserts the "no chats in folder" message after the list
// root, replacing any previous placeholder.
func (p *Page) ShowPlaceholder(text string) {
	p.mu.Lock()
	if p.doc == nil {
		p.mu.Unlock()
		return
	}
	p.doc.Find("." + placeholderClass).Remove()
	list := p.doc.Find(p.sel.ListRoot)
	if list.Length() > 0 {
		list.First().AfterHtml(fmt.Sprintf(`<div class="%s"><div class="ext-no-chats-content"><h3>%s</h3></div></div>`,
			placeholderClass, html.EscapeString(text)))
	}
	p.mu.Unlock()

	p.record(Op{Kind: OpShowPlaceholder, Text: text})
}

// RemovePlaceholder removes the "no chats" message; idempotent
func (p *Page) RemovePlaceholder() {
	p.mu.Lock()
	removed := false
	if p.doc != nil {
		ph := p.doc.Find("." + placeholderClass)
		if ph.Length() > 0 {
			ph.Remove()
			removed = true
		}
	}
	p.mu.Unlock()

	if removed {
		p.record(Op{Kind: OpRemovePlaceholder})
	}
}

// ShowNotification emits a transient success notification on the live page
func (p *Page) ShowNotification(message string) {
	p.record(Op{Kind: OpNotify, Text: message})
}

// EnsureStyles asks the agent to attach the extension stylesheet once.
// A load failure on the agent side leaves the page unstyled, not broken.
func (p *Page) EnsureStyles() {
	p.mu.Lock()
	already := p.stylesRequested
	p.stylesRequested = true
	p.mu.Unlock()
	if !already {
		p.record(Op{Kind: OpLoadStyles})
	}
}
