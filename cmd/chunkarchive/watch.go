package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/saworbit/chunkarchive/pkg/archive"
	"github.com/saworbit/chunkarchive/pkg/config"
)

const watchBucket = "archived_hashes"

func newWatchCmd() *cobra.Command {
	var (
		archiveDir  string
		storePath   string
		debounceStr string
	)

	cmd := &cobra.Command{
		Use:   "watch <source-dir>",
		Short: "Watch a directory and re-archive files as they change",
		Long: `watch monitors source-dir with fsnotify and, on every write or create
event, re-runs compress for the changed file once its content has
actually changed, tracking the last-archived hash per path in a small
bbolt store so unchanged files are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(func(c *config.Config) {
				if cmd.Flags().Changed("debounce") {
					if d, perr := time.ParseDuration(debounceStr); perr == nil {
						c.WatchDebounce = d
					}
				}
			})
			if err != nil {
				return err
			}
			return runWatch(args[0], archiveDir, storePath, cfg)
		},
	}

	cmd.Flags().StringVar(&archiveDir, "archive-dir", "", "Directory to write per-file archives into (default: alongside the source file, with a .carc suffix)")
	cmd.Flags().StringVar(&storePath, "store", "chunkarchive-watch.bolt", "Path to the bbolt store tracking last-archived hashes")
	cmd.Flags().StringVar(&debounceStr, "debounce", "", "Delay after a filesystem event before re-archiving (overrides CHUNKARCHIVE_WATCH_DEBOUNCE)")

	return cmd
}

type watchStore struct {
	db *bbolt.DB
}

func openWatchStore(path string) (*watchStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open watch store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(watchBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &watchStore{db: db}, nil
}

func (s *watchStore) lastHash(path string) string {
	var hash string
	s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(watchBucket))
		if v := b.Get([]byte(path)); v != nil {
			hash = string(v)
		}
		return nil
	})
	return hash
}

func (s *watchStore) setLastHash(path, hash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(watchBucket))
		return b.Put([]byte(path), []byte(hash))
	})
}

func (s *watchStore) Close() error { return s.db.Close() }

func runWatch(sourceDir, archiveDir, storePath string, cfg *config.Config) error {
	store, err := openWatchStore(storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchRecursive(watcher, sourceDir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[Watch] watching %s for changes...", sourceDir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			logDebug("[Watch] event %s for %s", event.Op, event.Name)
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if err := addWatchRecursive(watcher, event.Name); err != nil {
					log.Printf("[Watch] failed to watch %s: %v", event.Name, err)
				}
				continue
			}

			time.Sleep(cfg.WatchDebounce)

			if err := captureIfChanged(event.Name, archiveDir, store, cfg); err != nil {
				log.Printf("[Watch] capture failed for %s: %v", event.Name, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[Watch] watcher error: %v", err)
		}
	}
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			log.Printf("[Watch] failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

func captureIfChanged(path, archiveDir string, store *watchStore, cfg *config.Config) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := ensureReadable(path, info); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	newHash := hex.EncodeToString(sum[:])

	if store.lastHash(path) == newHash {
		return nil
	}

	dest := path + ".carc"
	if archiveDir != "" {
		dest = filepath.Join(archiveDir, filepath.Base(path)+".carc")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := archive.CreateArchive(context.Background(), f, out, archive.CreateOptions{
		ChunkerConfig:      cfg.Chunker,
		NumChunkBuffers:    cfg.WorkerBufferDepth,
		ChunkHashLength:    cfg.HashLength,
		Compression:        cfg.Compression,
		ApplicationVersion: cfg.ApplicationVersion,
	}); err != nil {
		return fmt.Errorf("archiving %s: %w", path, err)
	}

	if err := store.setLastHash(path, newHash); err != nil {
		return err
	}

	log.Printf("[Watch] re-archived %s -> %s", path, dest)
	return nil
}
