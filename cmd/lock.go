package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// Two announcements running at once would capture each other's audio as
// "previous state" and fight over grouping, so invocations are serialized
// host-wide. Directory creation is the lock primitive because mkdir is
// atomic on every filesystem.

// lockContent records who holds the lock, for stale detection.
type lockContent struct {
	PID       int       `json:"pid"`
	StartTime time.Time `json:"start_time"`
	Hostname  string    `json:"hostname"`
}

type announceLock struct {
	lockDir     string
	contentFile string
}

func announceLockDir() string {
	return filepath.Join(os.TempDir(), "sonos-say.lock.d")
}

// acquireAnnounceLock blocks until this invocation holds the host-wide
// announcement lock or ctx is cancelled. The returned release function must
// be called when the announcement is done.
func acquireAnnounceLock(ctx context.Context) (release func(), err error) {
	lock := &announceLock{
		lockDir:     announceLockDir(),
		contentFile: filepath.Join(announceLockDir(), "content.json"),
	}

	log.Debug("Acquiring announcement lock", "lockDir", lock.lockDir, "pid", os.Getpid())
	if err := lock.acquire(ctx); err != nil {
		return nil, err
	}
	return func() {
		lock.release()
		log.Debug("Announcement lock released", "pid", os.Getpid())
	}, nil
}

// acquire retries atomic directory creation until it wins, cleaning up
// stale locks left behind by dead processes along the way.
func (l *announceLock) acquire(ctx context.Context) error {
	for {
		err := os.Mkdir(l.lockDir, 0o755)
		if err == nil {
			hostname, _ := os.Hostname()
			content := lockContent{
				PID:       os.Getpid(),
				StartTime: time.Now(),
				Hostname:  hostname,
			}
			if data, err := json.Marshal(content); err == nil {
				os.WriteFile(l.contentFile, data, 0o644)
			}
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock directory: %w", err)
		}

		if l.cleanupStale() {
			continue
		}

		log.Debug("Waiting for running announcement to finish", "lockDir", l.lockDir)
		// Jitter keeps queued invocations from retrying in lockstep.
		jitter := time.Duration(25+rand.Intn(50)) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter):
		}
	}
}

func (l *announceLock) release() {
	os.Remove(l.contentFile)
	if err := os.Remove(l.lockDir); err != nil {
		log.Debug("Could not remove lock directory", "lockDir", l.lockDir, "error", err)
	}
}

// cleanupStale claims a stale lock directory with an atomic rename before
// deleting it, so two waiters cannot both "clean up" a directory that a
// third process just re-acquired.
func (l *announceLock) cleanupStale() bool {
	if !l.isStale() {
		return false
	}

	claimed := fmt.Sprintf("%s.stale.%d.%d", l.lockDir, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(l.lockDir, claimed); err != nil {
		return false
	}
	log.Debug("Cleaned up stale announcement lock", "lockDir", l.lockDir)
	os.RemoveAll(claimed)
	return true
}

// isStale prefers process liveness over age: an announcement can legitimately
// run for a while (long message, slow group formation), so active locks are
// never timed out. Only when the lock metadata is unreadable does directory
// age decide, with a generous grace period for a holder that created the
// directory but has not written metadata yet.
func (l *announceLock) isStale() bool {
	if data, err := os.ReadFile(l.contentFile); err == nil {
		var content lockContent
		if json.Unmarshal(data, &content) == nil {
			return !isProcessAlive(content.PID)
		}
	}

	const grace = 5 * time.Minute
	if fi, err := os.Stat(l.lockDir); err == nil {
		return time.Since(fi.ModTime()) > grace
	}
	return true
}
