// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
)

// Watch keeps the workspace in sync with the local file system until ctx
// is canceled.
//
// Description:
//
//	Every directory under the root is registered with fsnotify, and new
//	directories are registered as they appear. Writes and creations of
//	parsed files trigger Reload; removals and renames trigger Forget.
//	Events are applied as they arrive, one at a time.
//
// Outputs:
//
//	error - ErrNotLoaded before Load, ErrWatchUnsupported for non-local
//	roots, or a watcher setup error. Nil once ctx is canceled.
func (w *Workspace) Watch(ctx context.Context) error {
	if !w.isLoaded() {
		return ErrNotLoaded
	}
	if url.Scheme(w.root, file.Scheme) != file.Scheme {
		return fmt.Errorf("%w: %s", ErrWatchUnsupported, w.root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.watchTree(ctx, watcher, w.root); err != nil {
		return err
	}
	w.logger.Info("watching workspace", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// watchTree registers dirURL and every directory below it that is not
// excluded.
func (w *Workspace) watchTree(ctx context.Context, watcher *fsnotify.Watcher, dirURL string) error {
	if err := watcher.Add(filepath.FromSlash(url.Path(dirURL))); err != nil {
		return fmt.Errorf("watching %s: %w", dirURL, err)
	}
	objects, err := w.fs.List(ctx, dirURL, option.NewRecursive(true))
	if err != nil {
		return fmt.Errorf("listing %s: %w", dirURL, err)
	}
	for _, obj := range objects {
		if !obj.IsDir() || url.Equals(obj.URL(), dirURL) {
			continue
		}
		rel, ok := w.relURL(obj.URL())
		if !ok || w.excluded(rel) {
			continue
		}
		if err := watcher.Add(filepath.FromSlash(url.Path(obj.URL()))); err != nil {
			w.logger.Warn("cannot watch directory",
				slog.String("dir", rel),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (w *Workspace) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	rel, ok := w.relPath(filepath.ToSlash(event.Name))
	if !ok {
		return
	}
	switch {
	case event.Has(fsnotify.Create) && w.isDir(ctx, rel):
		if !w.excluded(rel) {
			if err := w.watchTree(ctx, watcher, url.Join(w.root, rel)); err != nil {
				w.logger.Warn("cannot watch new directory",
					slog.String("dir", rel),
					slog.String("error", err.Error()))
			}
		}
	case !w.wanted(rel):
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.Forget(rel)
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		if err := w.Reload(ctx, rel); err != nil {
			w.logger.Warn("reload failed",
				slog.String("file", rel),
				slog.String("error", err.Error()))
		}
	}
}

func (w *Workspace) isDir(ctx context.Context, rel string) bool {
	obj, err := w.fs.Object(ctx, url.Join(w.root, rel))
	return err == nil && obj.IsDir()
}
