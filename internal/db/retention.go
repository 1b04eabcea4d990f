package db

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/banshee-data/platewatch/internal/fsutil"
	"github.com/banshee-data/platewatch/internal/timeutil"
)

// RetentionWorker periodically deletes detection log rows, plate read
// rows, and stored crop/result images that have aged out. Designed to
// run hourly; database rows and artifact files have independent TTLs.
type RetentionWorker struct {
	DB           *DB
	FS           fsutil.FileSystem
	Clock        timeutil.Clock
	Interval     time.Duration // how often to run (e.g., 1h)
	LogTTL       time.Duration // age limit for detection_logs and plate_reads rows
	ArtifactTTL  time.Duration // age limit for files in ArtifactDirs
	ArtifactDirs []string
	StopChan     chan struct{}
}

func NewRetentionWorker(database *DB, fsys fsutil.FileSystem, clock timeutil.Clock, logTTL, artifactTTL time.Duration, artifactDirs ...string) *RetentionWorker {
	return &RetentionWorker{
		DB:           database,
		FS:           fsys,
		Clock:        clock,
		Interval:     time.Hour,
		LogTTL:       logTTL,
		ArtifactTTL:  artifactTTL,
		ArtifactDirs: artifactDirs,
		StopChan:     make(chan struct{}),
	}
}

// Start runs the periodic worker loop in a goroutine.
func (w *RetentionWorker) Start() {
	go func() {
		ticker := w.Clock.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				if err := w.RunOnce(context.Background()); err != nil {
					log.Printf("retention worker run error: %v", err)
				}
			case <-w.StopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop.
func (w *RetentionWorker) Stop() {
	close(w.StopChan)
}

// RunOnce performs one retention sweep relative to the worker's clock.
func (w *RetentionWorker) RunOnce(ctx context.Context) error {
	now := w.Clock.Now()

	logCutoff := now.Add(-w.LogTTL)
	logs, err := w.DB.PruneDetectionLogs(ctx, logCutoff)
	if err != nil {
		return err
	}

	reads, err := w.DB.PrunePlateReads(ctx, logCutoff)
	if err != nil {
		return err
	}

	removed := w.pruneArtifacts(now.Add(-w.ArtifactTTL))

	if logs > 0 || reads > 0 || removed > 0 {
		log.Printf("Retention worker: pruned %d detection logs, %d plate reads, %d artifact files",
			logs, reads, removed)
	}

	return nil
}

// pruneArtifacts removes files older than the cutoff from the artifact
// directories. A directory that cannot be listed is skipped, not fatal:
// the next sweep retries it.
func (w *RetentionWorker) pruneArtifacts(cutoff time.Time) int {
	removed := 0
	for _, dir := range w.ArtifactDirs {
		entries, err := w.FS.ReadDir(dir)
		if err != nil {
			log.Printf("Retention worker: skipping %s: %v", dir, err)
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			if err := w.FS.Remove(path); err != nil {
				log.Printf("Retention worker: failed to remove %s: %v", path, err)
				continue
			}
			removed++
		}
	}
	return removed
}
