package app

import (
	"os"
	"os/signal"
	"time"

	"github.com/gdamore/tcell/v2"

	statepkg "github.com/kk-code-lab/mill/internal/state"
)

const flashDuration = 100 * time.Millisecond

// Run processes input, preview completions, change notifications and file
// operation results until the user quits.
func (app *Application) Run() {
	app.render()
	renderPending := false

	eventChan := make(chan tcell.Event)
	go func() {
		for {
			ev := app.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventChan <- ev:
			case <-app.ctx.Done():
				return
			}
		}
	}()

	var sigContCh chan os.Signal
	if sigs := contSignals(); len(sigs) > 0 {
		sigContCh = make(chan os.Signal, 1)
		signal.Notify(sigContCh, sigs...)
		defer signal.Stop(sigContCh)
	}

	var changes <-chan string
	if app.watcher != nil {
		changes = app.watcher.Changes()
	}

	flash := time.NewTimer(time.Hour)
	flash.Stop()
	defer flash.Stop()

	for !app.shouldQuit {
		if renderPending {
			app.render()
			renderPending = false
		}

		select {
		case ev := <-eventChan:
			renderPending = app.handleEvent(ev)
		case action := <-app.actionCh:
			renderPending = app.handleAction(action)
		case <-app.previews.Updates():
			renderPending = true
		case dir := <-changes:
			renderPending = app.handleAction(statepkg.DirectoryChangedAction{Dir: dir})
		case res := <-app.opDone:
			app.finishOperation(res)
			renderPending = true
		case <-sigContCh:
			renderPending = app.resumeAfterStop()
		case <-flash.C:
			renderPending = true
		}

		if app.processActions() {
			renderPending = true
		}
		if app.flashing() {
			flash.Reset(flashDuration)
		}
	}
	app.cancel()
}

func (app *Application) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		app.message = ""
		app.lastErr = nil
		if !app.input.ProcessEvent(ev) {
			// The quit action is already queued; drain it so the loop ends.
			app.processActions()
		}
	case *tcell.EventResize:
		app.input.ProcessEvent(ev)
		app.screen.Sync()
	case *tcell.EventMouse:
		return app.handleMouse(ev)
	case *tcell.EventInterrupt:
	default:
		return false
	}
	return true
}

// handleMouse maps the wheel to cursor movement.
func (app *Application) handleMouse(ev *tcell.EventMouse) bool {
	switch {
	case ev.Buttons()&tcell.WheelUp != 0:
		app.dispatch(statepkg.MoveCursorAction{Delta: -1})
	case ev.Buttons()&tcell.WheelDown != 0:
		app.dispatch(statepkg.MoveCursorAction{Delta: 1})
	default:
		return false
	}
	return true
}

// dispatch queues an action without ever blocking the loop.
func (app *Application) dispatch(action statepkg.Action) {
	select {
	case app.actionCh <- action:
	default:
		go func() { app.actionCh <- action }()
	}
}

func (app *Application) processActions() bool {
	changed := false
	for {
		select {
		case action := <-app.actionCh:
			if app.handleAction(action) {
				changed = true
			}
		default:
			return changed
		}
	}
}

func (app *Application) flashing() bool {
	return !app.lastYank.IsZero() && time.Since(app.lastYank) < flashDuration
}
