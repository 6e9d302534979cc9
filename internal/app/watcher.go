package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/tetsuolabs/epdticker/internal/config"
)

// reloadDebounce coalesces editor write bursts into one reload.
const reloadDebounce = 200 * time.Millisecond

// WatchConfig watches the config file and delivers re-parsed
// configurations on the returned channel until ctx is cancelled. Parse or
// validation failures are logged and skipped; the running config stays in
// effect.
func WatchConfig(ctx context.Context, path string, log zerolog.Logger) (<-chan config.Config, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors and provisioning tools typically
	// replace the file, which drops a watch placed on the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	out := make(chan config.Config, 1)
	go func() {
		defer w.Close()
		defer close(out)

		var debounce *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if debounce == nil {
					debounce = time.NewTimer(reloadDebounce)
				} else {
					debounce.Reset(reloadDebounce)
				}
				fire = debounce.C

			case <-fire:
				fire = nil
				cfg, err := config.Load(path)
				if err != nil {
					log.Warn().Err(err).Str("path", path).Msg("config reload skipped")
					continue
				}
				select {
				case out <- cfg:
				default:
					// A pending reload is superseded.
					select {
					case <-out:
					default:
					}
					out <- cfg
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()
	return out, nil
}
