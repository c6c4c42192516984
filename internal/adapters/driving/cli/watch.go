package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/corpusworks/corpus-cli/internal/loaders"
	"github.com/corpusworks/corpus-cli/internal/logger"
)

// debounceDelay coalesces the event bursts editors produce on save.
const debounceDelay = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and reindex changed documents",
	Long: `Watch monitors the directory tree and reindexes a document shortly
after it is created or modified. Runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := documentRoot(args)
		if err != nil {
			return err
		}
		dir, err = filepath.Abs(dir)
		if err != nil {
			return err
		}

		store, err := buildStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		pipeline := buildPipeline(store, dir)

		supported := make(map[string]bool)
		for _, ext := range loaders.NewRegistry(loaders.Options{}).SupportedExtensions() {
			supported[ext] = true
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close() //nolint:errcheck

		if err := watchTree(watcher, dir); err != nil {
			return err
		}
		fmt.Printf("Watching %s\n", dir)

		ctx := cmd.Context()
		var (
			mu     sync.Mutex
			timers = make(map[string]*time.Timer)
		)
		reindexLater := func(path string) {
			mu.Lock()
			defer mu.Unlock()
			if t, ok := timers[path]; ok {
				t.Reset(debounceDelay)
				return
			}
			timers[path] = time.AfterFunc(debounceDelay, func() {
				mu.Lock()
				delete(timers, path)
				mu.Unlock()

				res, err := pipeline.Reindex(ctx, path)
				if err != nil {
					logger.Warn("reindex %s: %v", path, err)
					return
				}
				fmt.Printf("Reindexed %s (-%d +%d chunks)\n", path, res.Deleted, res.File.ChunksAdded)
			})
		}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if event.Op&fsnotify.Create != 0 {
					if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
						if err := watchTree(watcher, event.Name); err != nil {
							logger.Warn("watch %s: %v", event.Name, err)
						}
						continue
					}
				}
				if supported[strings.ToLower(filepath.Ext(event.Name))] {
					reindexLater(event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logger.Warn("watcher: %v", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watchTree registers dir and every subdirectory, skipping dot dirs.
func watchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); strings.HasPrefix(name, ".") && path != dir {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
