package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/kk-code-lab/mill/internal/config"
	"github.com/kk-code-lab/mill/internal/fileops"
	"github.com/kk-code-lab/mill/internal/logging"
	"github.com/kk-code-lab/mill/internal/preview"
	statepkg "github.com/kk-code-lab/mill/internal/state"
	"github.com/kk-code-lab/mill/internal/store"
	inputui "github.com/kk-code-lab/mill/internal/ui/input"
	renderui "github.com/kk-code-lab/mill/internal/ui/render"
	"github.com/kk-code-lab/mill/internal/watch"
)

// Options configure NewApplication.
type Options struct {
	Config   config.Config
	Logger   *logging.Logger
	StartDir string // defaults to the working directory
}

// opResult is a finished file operation reported back to the loop.
type opResult struct {
	name  string
	batch fileops.Batch
	focus string // entry name to put the cursor on afterwards
}

// Application represents the running app.
type Application struct {
	screen   tcell.Screen
	logger   *slog.Logger
	store    *store.Store
	cache    *preview.Cache
	previews *preview.Scheduler
	nav      *statepkg.Navigator
	reducer  *statepkg.Reducer
	exec     *fileops.Executor
	trash    *fileops.Trash
	watcher  *watch.Watcher
	renderer *renderui.Renderer
	input    *inputui.InputHandler

	actionCh chan statepkg.Action
	opDone   chan opResult
	ctx      context.Context
	cancel   context.CancelFunc

	// retained holds the displayed directory, its parent and the previous
	// directory; preview workers read it concurrently.
	retained atomic.Pointer[[3]string]
	watching string

	busy       bool
	message    string
	lastErr    error
	lastYank   time.Time
	shouldQuit bool
	resultPath string
}

// NewApplication wires the navigator, preview pipeline, executor and watcher
// around screen, which must already be initialised.
func NewApplication(screen tcell.Screen, opts Options) (*Application, error) {
	cfg := opts.Config
	logs := opts.Logger
	if logs == nil {
		logs = logging.Discard()
	}

	start := opts.StartDir
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		start = cwd
	}

	app := &Application{
		screen:   screen,
		logger:   logs.Component("app"),
		actionCh: make(chan statepkg.Action, 64),
		opDone:   make(chan opResult, 1),
	}
	app.ctx, app.cancel = context.WithCancel(context.Background())

	limits := preview.DefaultLimits()
	if cfg.Preview.TextBytes > 0 {
		limits.TextBytes = cfg.Preview.TextBytes
	}
	if cfg.Preview.HighlightStyle != "" {
		limits.HighlightStyle = cfg.Preview.HighlightStyle
	}

	app.store = store.New(cfg.Store.Snapshots, logs.Component("store"))
	app.cache = preview.NewCache(cfg.Preview.CacheBytes)
	app.previews = preview.NewScheduler(app.cache, preview.Options{
		Workers:       cfg.Preview.Workers,
		PrefetchDelay: cfg.Preview.PrefetchDelay,
		Limits:        limits,
		Logger:        logs.Component("preview"),
		Retain:        app.retainDir,
	})
	app.nav = statepkg.NewNavigator(app.store, app.previews, statepkg.Options{
		ShowHidden:     cfg.ShowHidden,
		PrefetchRadius: cfg.Preview.PrefetchRadius,
		Logger:         logs.Component("nav"),
	})
	app.reducer = statepkg.NewReducer(app.nav)

	if cfg.UseTrash {
		trash, err := fileops.NewTrash(nil)
		if err != nil {
			app.previews.Close()
			return nil, fmt.Errorf("create trash: %w", err)
		}
		app.trash = trash
	}
	app.exec = fileops.NewExecutor(app.store, app.cache, app.trash, fileops.Options{
		UseTrash: cfg.UseTrash,
		Logger:   logs.Component("fileops"),
	})

	watcher, err := watch.New(watch.DefaultDebounce, logs.Component("watch"))
	if err != nil {
		// Without notifications the user can still refresh by hand.
		app.logger.Warn("file watcher unavailable", "err", err)
	} else {
		app.watcher = watcher
		go func() {
			if err := watcher.Run(app.ctx); err != nil {
				app.logger.Warn("file watcher stopped", "err", err)
			}
		}()
	}

	app.renderer = renderui.NewRenderer(screen)
	app.input = inputui.NewInputHandler(app.actionCh)
	app.input.SetNavigator(app.nav)

	if err := app.nav.Open(start); err != nil {
		app.Close()
		return nil, err
	}
	if w, h := screen.Size(); w > 0 && h > 0 {
		_, _ = app.reducer.Reduce(statepkg.ResizeAction{Width: w, Height: h})
	}
	app.syncDirectory()
	return app, nil
}

// Close stops background work and removes the session trash.
func (app *Application) Close() error {
	app.cancel()
	app.previews.Close()
	if app.watcher != nil {
		_ = app.watcher.Close()
	}
	if app.trash != nil {
		return app.trash.Close()
	}
	return nil
}

// GetCurrentPath returns the directory to hand to the shell on exit, or ""
// when the user quit without asking to change directory.
func (app *Application) GetCurrentPath() string {
	return app.resultPath
}

func (app *Application) retainDir(dir string) bool {
	dirs := app.retained.Load()
	return dirs != nil && (dir == dirs[0] || dir == dirs[1] || dir == dirs[2])
}

// syncDirectory follows a directory change with the watcher and the preview
// retention set.
func (app *Application) syncDirectory() {
	path := app.nav.Path()
	if path == app.watching {
		return
	}
	app.watching = path
	parent := filepath.Dir(path)
	app.retained.Store(&[3]string{path, parent, app.nav.Previous()})
	app.cache.PruneDirs(app.retainDir)
	if app.watcher != nil {
		app.watcher.Watch(path, parent)
	}
}
