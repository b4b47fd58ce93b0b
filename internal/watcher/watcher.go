// Package watcher reports content changes of files, such as a SQLite
// database written by another process.
package watcher

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/untillpro/goutils/logger"
)

// FileWatcher calls back when a watched file's content changes. Events that
// leave the content hash unchanged are dropped.
type FileWatcher struct {
	watcher *fsnotify.Watcher

	mu        sync.RWMutex
	hashes    map[string]string
	callbacks map[string]func(string)
	debounce  map[string]time.Duration
	timers    map[string]*time.Timer

	done chan struct{}
}

// NewFileWatcher returns a watcher with nothing watched.
func NewFileWatcher() (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	return &FileWatcher{
		watcher:   w,
		hashes:    make(map[string]string),
		callbacks: make(map[string]func(string)),
		debounce:  make(map[string]time.Duration),
		timers:    make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}, nil
}

// Watch registers callback for path. Changes arriving within debounce of
// each other are reported once, debounce after the last one.
func (fw *FileWatcher) Watch(path string, callback func(string), debounce time.Duration) error {
	hash, err := fileHash(path)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", path, err)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.hashes[path] = hash
	fw.callbacks[path] = callback
	fw.debounce[path] = debounce

	if err := fw.watcher.Add(path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	return nil
}

// Start processes events in the background until Close.
func (fw *FileWatcher) Start() {
	go fw.loop()
}

func (fw *FileWatcher) loop() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			fw.schedule(event.Name)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warning("watcher:", err)

		case <-fw.done:
			return
		}
	}
}

func (fw *FileWatcher) schedule(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, ok := fw.callbacks[path]; !ok {
		return
	}
	d := fw.debounce[path]
	if d == 0 {
		go fw.changed(path)
		return
	}
	if t, ok := fw.timers[path]; ok {
		t.Stop()
	}
	fw.timers[path] = time.AfterFunc(d, func() {
		fw.mu.Lock()
		delete(fw.timers, path)
		fw.mu.Unlock()
		fw.changed(path)
	})
}

// changed calls back when the content hash of path moved.
func (fw *FileWatcher) changed(path string) {
	hash, err := fileHash(path)
	if err != nil {
		logger.Warning(fmt.Sprintf("watcher: hashing %s: %v", path, err))
		return
	}

	fw.mu.Lock()
	callback, ok := fw.callbacks[path]
	if !ok || fw.hashes[path] == hash {
		fw.mu.Unlock()
		return
	}
	fw.hashes[path] = hash
	fw.mu.Unlock()

	logger.Verbose("watcher: changed", path)
	callback(path)
}

// Unwatch stops reporting changes of path.
func (fw *FileWatcher) Unwatch(path string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if t, ok := fw.timers[path]; ok {
		t.Stop()
		delete(fw.timers, path)
	}
	delete(fw.hashes, path)
	delete(fw.callbacks, path)
	delete(fw.debounce, path)
	return fw.watcher.Remove(path)
}

// Close stops the watcher and any pending debounced callbacks.
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	for path, t := range fw.timers {
		t.Stop()
		delete(fw.timers, path)
	}
	select {
	case <-fw.done:
	default:
		close(fw.done)
	}
	fw.mu.Unlock()
	return fw.watcher.Close()
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
