// Package tui is the folder management panel: the place to rename,
// reorder and hide folders and to flip the global enabled switch. It talks
// to the coordinator over the same messaging channel as page agents.
package tui

import (
	"context"
	"fmt"
	"log"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/ajramos/chatfolders/internal/folders"
	"github.com/ajramos/chatfolders/internal/services"
)

// ManagePanel is the interactive folder management UI
type ManagePanel struct {
	app        *tview.Application
	messenger  services.Messenger
	broadcasts <-chan services.Broadcast
	logger     *log.Logger

	pages  *tview.Pages
	list   *tview.List
	status *tview.TextView

	folders []folders.Folder
	enabled bool
}

// NewManagePanel creates the management panel
func NewManagePanel(messenger services.Messenger, broadcasts <-chan services.Broadcast, logger *log.Logger) *ManagePanel {
	return &ManagePanel{
		app:        tview.NewApplication(),
		messenger:  messenger,
		broadcasts: broadcasts,
		logger:     logger,
	}
}

// Run blocks until the user quits or ctx is cancelled
func (p *ManagePanel) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := p.load(ctx); err != nil {
		return fmt.Errorf("load folder data: %w", err)
	}

	p.status = tview.NewTextView().SetDynamicColors(true)
	p.list = tview.NewList().ShowSecondaryText(false)
	p.list.SetBorder(true).SetTitle(" Папки ")

	help := tview.NewTextView().SetDynamicColors(true)
	help.SetText("[yellow]e[-] вкл/выкл  [yellow]r[-] переименовать  [yellow]K/J[-] переместить  [yellow]h[-] скрыть/показать  [yellow]q[-] выход")

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(p.status, 1, 0, false).
		AddItem(p.list, 0, 1, true).
		AddItem(help, 1, 0, false)

	p.pages = tview.NewPages().AddPage("main", flex, true, true)
	p.refresh()

	p.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q':
			p.app.Stop()
			return nil
		case 'e':
			p.toggleEnabled(ctx)
			return nil
		case 'r':
			p.promptRename(ctx)
			return nil
		case 'K':
			p.move(ctx, true)
			return nil
		case 'J':
			p.move(ctx, false)
			return nil
		case 'h':
			p.toggleHidden(ctx)
			return nil
		}
		if event.Key() == tcell.KeyEscape {
			p.app.Stop()
			return nil
		}
		return event
	})

	// Re-render on changes made by other instances.
	if p.broadcasts != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-p.broadcasts:
					if !ok {
						return
					}
					p.app.QueueUpdateDraw(func() {
						switch b.Kind {
						case services.BroadcastStateChanged:
							p.enabled = b.Enabled
						case services.BroadcastFoldersChanged:
							if folders.Validate(b.Folders) {
								p.folders = b.Folders
							}
						}
						p.refresh()
					})
				}
			}
		}()
	}

	go func() {
		<-ctx.Done()
		p.app.QueueUpdateDraw(func() { p.app.Stop() })
	}()

	return p.app.SetRoot(p.pages, true).EnableMouse(true).Run()
}

func (p *ManagePanel) load(ctx context.Context) error {
	enabled, err := p.messenger.GetState(ctx)
	if err != nil {
		return err
	}
	list, err := p.messenger.GetFolders(ctx)
	if err != nil {
		return err
	}
	p.enabled = enabled
	p.folders = list
	return nil
}

func (p *ManagePanel) refresh() {
	if p.enabled {
		p.status.SetText("[green]✅ Включено[-]")
	} else {
		p.status.SetText("[red]❌ Выключено[-]")
	}

	current := p.list.GetCurrentItem()
	p.list.Clear()
	for _, f := range p.folders {
		label := f.Name
		if f.Hidden {
			label = fmt.Sprintf("%s [gray](скрыта)[-]", f.Name)
		}
		if f.ID == folders.FolderAll {
			label = fmt.Sprintf("%s [gray](системная)[-]", f.Name)
		}
		p.list.AddItem(label, f.ID, 0, nil)
	}
	if current >= 0 && current < p.list.GetItemCount() {
		p.list.SetCurrentItem(current)
	}
}

func (p *ManagePanel) selectedFolder() *folders.Folder {
	idx := p.list.GetCurrentItem()
	if idx < 0 || idx >= len(p.folders) {
		return nil
	}
	return &p.folders[idx]
}

func (p *ManagePanel) toggleEnabled(ctx context.Context) {
	next := !p.enabled
	if err := p.messenger.SetState(ctx, next); err != nil {
		p.logf("set state: %v", err)
		return
	}
	p.enabled = next
	p.refresh()
}

// save pushes the locally edited list through the coordinator, which
// persists and broadcasts it.
func (p *ManagePanel) save(ctx context.Context) {
	if err := p.messenger.UpdateFolders(ctx, p.folders); err != nil {
		p.logf("update folders: %v", err)
	}
}

func (p *ManagePanel) promptRename(ctx context.Context) {
	f := p.selectedFolder()
	if f == nil {
		return
	}
	idx := p.list.GetCurrentItem()

	input := tview.NewInputField().SetLabel("Новое имя: ").SetText(f.Name)
	input.SetAcceptanceFunc(tview.InputFieldMaxLength(folders.MaxNameRunes))
	input.SetDoneFunc(func(key tcell.Key) {
		defer func() {
			p.pages.RemovePage("rename")
			p.app.SetFocus(p.list)
		}()
		if key != tcell.KeyEnter {
			return
		}
		name := folders.TrimName(input.GetText())
		if name == "" {
			return
		}
		// Rename never changes the folder id.
		p.folders[idx].Name = name
		p.save(ctx)
		p.refresh()
	})
	input.SetBorder(true).SetTitle(" Переименовать папку ")

	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(input, 3, 0, true).
			AddItem(nil, 0, 1, false), 50, 0, true).
		AddItem(nil, 0, 1, false)

	p.pages.AddPage("rename", modal, true, true)
	p.app.SetFocus(input)
}

func (p *ManagePanel) move(ctx context.Context, up bool) {
	idx := p.list.GetCurrentItem()
	target := idx + 1
	if up {
		target = idx - 1
	}
	// position 0 is pinned to the synthetic "all" folder
	if idx < 1 || target < 1 || target >= len(p.folders) {
		return
	}
	p.folders[idx], p.folders[target] = p.folders[target], p.folders[idx]
	p.save(ctx)
	p.refresh()
	p.list.SetCurrentItem(target)
}

func (p *ManagePanel) toggleHidden(ctx context.Context) {
	f := p.selectedFolder()
	if f == nil || f.ID == folders.FolderAll {
		return
	}
	f.Hidden = !f.Hidden
	p.save(ctx)
	p.refresh()
}

func (p *ManagePanel) logf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
