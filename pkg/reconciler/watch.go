package reconciler

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// sourceWatcher reports file system changes which may mean a new source
// revision. It watches the directory holding the source link, where git-sync
// swaps the link, and the manifest directory itself.
type sourceWatcher struct {
	watcher *fsnotify.Watcher
	changed chan struct{}
	done    chan struct{}
}

func newSourceWatcher(sourceDir, path string) (*sourceWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file system watcher")
	}
	dirs := []string{filepath.Dir(filepath.Clean(sourceDir))}
	if root, err := filepath.EvalSymlinks(sourceDir); err == nil {
		dirs = append(dirs, filepath.Join(root, filepath.FromSlash(path)))
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, errors.Wrapf(err, "watching %q", dir)
		}
	}

	sw := &sourceWatcher{
		watcher: w,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go sw.loop()
	return sw, nil
}

func (sw *sourceWatcher) loop() {
	defer close(sw.done)
	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			klog.V(4).Infof("Source event: %s", event)
			select {
			case sw.changed <- struct{}{}:
			default:
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			klog.Warningf("Watching the manifest source: %v", err)
		}
	}
}

// Changed receives after any file system event. Bursts of events are
// collapsed.
func (sw *sourceWatcher) Changed() <-chan struct{} {
	return sw.changed
}

// Close stops watching.
func (sw *sourceWatcher) Close() error {
	err := sw.watcher.Close()
	<-sw.done
	return err
}
