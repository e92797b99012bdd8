package app

import (
	"github.com/dshills/replbridge/internal/config"
	"github.com/dshills/replbridge/internal/config/watcher"
)

// startWatcher reloads the config file when it changes. Reloads are
// posted to the loop before they touch the bridge.
func (app *Application) startWatcher() {
	w, err := watcher.New(app.opts.ConfigPath, watcher.WithErrorHandler(func(err error) {
		app.log.Warn("config watcher", "error", err)
	}))
	if err != nil {
		app.log.Warn("config reload disabled", "path", app.opts.ConfigPath, "error", err)
		return
	}
	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			return
		}
		app.loop.Post(app.reload)
	})
	app.watcher = w
	app.log.Debug("watching config", "path", w.Path())
}

// reload re-reads the config file and applies what can change live.
func (app *Application) reload() {
	overrides := app.opts.Overrides
	if overrides == nil {
		overrides = config.NewOverrides()
	}
	settings, err := config.LoadWithOverrides(app.opts.ConfigPath, overrides)
	if err != nil {
		app.report("reload", err)
		return
	}
	if err := app.bridge.UpdateSettings(settings); err != nil {
		app.report("reload", err)
		return
	}
	app.opts.Settings = settings
	app.log.Info("config reloaded", "path", app.opts.ConfigPath)
	app.setStatus("config reloaded")
}
