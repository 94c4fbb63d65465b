package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/kk-code-lab/mill/internal/fileops"
	statepkg "github.com/kk-code-lab/mill/internal/state"
	renderui "github.com/kk-code-lab/mill/internal/ui/render"
)

var (
	errBusy          = errors.New("another file operation is still running")
	errNothingStaged = errors.New("nothing to paste: cut or copy first")
	errTrashDisabled = errors.New("trash is disabled")
)

func (app *Application) handleAction(action statepkg.Action) bool {
	if action == nil {
		return false
	}

	switch action.(type) {
	case statepkg.QuitAction:
		app.shouldQuit = true
		return false
	case statepkg.QuitAndChangeAction:
		app.resultPath = app.nav.Path()
		app.shouldQuit = true
		return false
	case statepkg.SuspendAction:
		app.suspendToShell()
		app.resumeAfterStop()
		return true
	}

	handled, err := app.reducer.Reduce(action)
	if !handled {
		err = app.handleAppAction(action)
	}
	if err != nil {
		app.lastErr = err
		app.logger.Debug("action failed", "action", fmt.Sprintf("%T", action), "err", err)
	}
	app.syncDirectory()
	return true
}

func (app *Application) handleAppAction(action statepkg.Action) error {
	dir := app.nav.Path()

	switch a := action.(type) {
	case statepkg.YankPathAction:
		return app.handleClipboard()
	case statepkg.ViewTrashAction:
		if app.trash == nil {
			return errTrashDisabled
		}
		_, err := app.reducer.Reduce(statepkg.JumpToAction{Path: app.trash.Dir()})
		return err

	case statepkg.CutAction, statepkg.CopyAction:
		targets := app.nav.Targets()
		if len(targets) == 0 {
			return nil
		}
		_, move := a.(statepkg.CutAction)
		verb := "copy"
		if move {
			app.exec.Cut(targets)
			verb = "move"
		} else {
			app.exec.Copy(targets)
		}
		app.nav.ClearMarks()
		app.message = fmt.Sprintf("%d staged to %s", len(targets), verb)
		return nil

	case statepkg.MkdirAction:
		return app.startOperation("mkdir", a.Name, func(context.Context) fileops.Batch {
			return fileops.Batch{app.exec.Mkdir(dir, a.Name)}
		})
	case statepkg.TouchAction:
		return app.startOperation("touch", a.Name, func(context.Context) fileops.Batch {
			return fileops.Batch{app.exec.Touch(dir, a.Name)}
		})
	case statepkg.RenameAction:
		entry, ok := app.nav.Current()
		if !ok {
			return nil
		}
		return app.startOperation("rename", a.Name, func(context.Context) fileops.Batch {
			return fileops.Batch{app.exec.Rename(entry.Path, a.Name)}
		})
	case statepkg.DeleteAction:
		targets := app.nav.Targets()
		if len(targets) == 0 {
			return nil
		}
		name := "delete"
		if app.exec.UseTrash() {
			name = "trash"
		}
		return app.startOperation(name, "", func(ctx context.Context) fileops.Batch {
			return app.exec.Delete(ctx, targets)
		})
	case statepkg.PasteAction:
		if len(app.exec.Staged().Paths) == 0 {
			return errNothingStaged
		}
		return app.startOperation("paste", "", func(ctx context.Context) fileops.Batch {
			if a.Overwrite {
				return app.exec.PasteOverwrite(ctx, dir)
			}
			return app.exec.Paste(ctx, dir)
		})
	case statepkg.RestoreTrashAction:
		if app.trash == nil {
			return errTrashDisabled
		}
		return app.startOperation("restore", "", func(ctx context.Context) fileops.Batch {
			return fileops.Batch{app.exec.RestoreLast(ctx)}
		})
	}
	return nil
}

// startOperation runs fn off the loop. Only one operation runs at a time;
// navigation keeps working meanwhile.
func (app *Application) startOperation(name, focus string, fn func(ctx context.Context) fileops.Batch) error {
	if app.busy {
		return errBusy
	}
	app.busy = true
	app.message = name + "…"
	ctx := app.ctx
	go func() {
		start := time.Now()
		batch := fn(ctx)
		app.logger.Info("operation finished", "op", name, "took", time.Since(start), "summary", batch.Summary())
		select {
		case app.opDone <- opResult{name: name, batch: batch, focus: focus}:
		case <-ctx.Done():
		}
	}()
	return nil
}

func (app *Application) finishOperation(res opResult) {
	app.busy = false
	app.message = res.name + ": " + res.batch.Summary()
	if err := res.batch.Err(); err != nil {
		app.lastErr = err
	}

	if err := app.nav.Refresh(); err != nil {
		app.lastErr = errors.Join(app.lastErr, err)
	}
	if res.focus != "" && res.batch.Count(fileops.Success) > 0 {
		for i, e := range app.nav.View() {
			if e.Name == res.focus {
				app.nav.MoveTo(i)
				break
			}
		}
	}
	app.syncDirectory()
}

func (app *Application) handleClipboard() error {
	target := app.nav.Path()
	if entry, ok := app.nav.Current(); ok {
		target = entry.Path
	}
	if clipboard.Unsupported {
		return errors.New("no clipboard available")
	}
	if err := clipboard.WriteAll(normalizeClipboardPath(target, runtime.GOOS)); err != nil {
		return fmt.Errorf("yank: %w", err)
	}
	app.lastYank = time.Now()
	app.message = "yanked " + target
	return nil
}

func normalizeClipboardPath(inputPath string, goos string) string {
	if strings.EqualFold(goos, "windows") {
		cleaned := filepath.Clean(inputPath)
		return strings.ReplaceAll(cleaned, "/", `\`)
	}
	return path.Clean(filepath.ToSlash(inputPath))
}

func (app *Application) render() {
	app.renderer.Render(app.view())
}

// view snapshots everything the renderer needs.
func (app *Application) view() *renderui.View {
	nav := app.nav
	v := &renderui.View{
		Path:        nav.Path(),
		Entries:     nav.View(),
		Cursor:      nav.Cursor(),
		Marked:      nav.IsMarked,
		MarkCount:   len(nav.Marked()),
		ShowHidden:  nav.ShowHidden(),
		Searching:   nav.Searching(),
		SearchText:  nav.SearchPattern(),
		HelpVisible: app.input.HelpVisible(),
		Message:     app.message,
		Err:         app.lastErr,
		Flash:       app.flashing(),
		Now:         time.Now(),
	}
	if parent := nav.Parent(); parent != nil {
		v.Parent = parent.Visible(nav.ShowHidden())
		if self, ok := parent.Lookup(nav.Path()); ok {
			v.ParentFocus = self.Name
		}
	}
	if staged := app.exec.Staged(); len(staged.Paths) > 0 {
		v.Staged = len(staged.Paths)
		v.StagedMove = staged.Move
	}
	if label, text, cursor, ok := app.input.Prompt(); ok {
		v.Prompt = &renderui.Prompt{Label: label, Text: text, Cursor: cursor}
	}
	if entry, ok := nav.Current(); ok {
		v.Preview, _ = app.previews.Lookup(entry)
		v.PreviewPending = v.Preview == nil
	}
	return v
}
