package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.lsp.dev/uri"

	"glint/internal/convert"
	"glint/internal/session"
)

var watchCmd = &cobra.Command{
	Use:          "watch [flags] <directory>",
	Short:        "Reconvert model files as they change on disk",
	Long:         `Watch a directory for model file changes and feed each change through a session, printing a one-line summary per reconversion`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runWatch,
}

func init() {
	watchCmd.Flags().Duration("settle", 200*time.Millisecond, "idle window before a changed file reconverts")
}

func runWatch(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	desc, err := loadDescriptor(settings)
	if err != nil {
		return err
	}
	settle, err := cmd.Flags().GetDuration("settle")
	if err != nil {
		return fmt.Errorf("failed to get settle flag: %w", err)
	}

	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	w := &watchLoop{
		cmd:    cmd,
		settle: settle,
		sessions: session.NewManager(session.Options{
			Descriptor: desc,
			Layout:     settings.LayoutOptions(),
		}),
		pending:  make(map[string]*time.Timer),
		versions: make(map[uri.URI]int64),
	}
	w.sessions.OnModelChanged(func(ev session.ChangeEvent) {
		if quiet(cmd) {
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: revision %d, %d change(s), %d node(s), %d edge(s)\n",
			ev.URI.Filename(), ev.Revision, len(ev.Changes), len(ev.Snapshot.Nodes), len(ev.Snapshot.Edges))
	})
	defer w.drain()

	// Watch the directory and every subdirectory that exists now; new
	// subdirectories are picked up from create events.
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !quiet(cmd) {
		fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", dir)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		}
	}
}

type watchLoop struct {
	cmd      *cobra.Command
	settle   time.Duration
	sessions *session.Manager

	mu       sync.Mutex
	pending  map[string]*time.Timer
	versions map[uri.URI]int64
}

func (w *watchLoop) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				fmt.Fprintf(os.Stderr, "watch: %v\n", err)
			}
			return
		}
	}
	if !strings.HasSuffix(event.Name, convert.ModelExt) {
		return
	}
	if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		w.forget(event.Name)
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return
	}
	w.schedule(event.Name)
}

// schedule resets the file's settle timer so editors that write in
// several bursts reconvert once.
func (w *watchLoop) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.sync(path)
	})
}

func (w *watchLoop) forget(path string) {
	w.mu.Lock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	docURI := uri.File(path)
	if err := w.sessions.Close(docURI); err == nil {
		w.mu.Lock()
		delete(w.versions, docURI)
		w.mu.Unlock()
	}
}

func (w *watchLoop) drain() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

// sync pushes the file's current content through the session so
// element identity and pinned positions survive successive edits.
func (w *watchLoop) sync(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return
	}
	docURI := uri.File(path)
	w.mu.Lock()
	w.versions[docURI]++
	version := w.versions[docURI]
	w.mu.Unlock()

	if version == 1 {
		w.sessions.Open(docURI, string(data), version)
		return
	}
	if err := w.sessions.Change(docURI, string(data), version); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
	}
}
