// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const logDirCleanInterval = time.Minute

var (
	cleanerStop chan struct{}
	cleanerDone chan struct{}
)

// configureLogDirCleanerLocked restarts the cleaner for the new limits. Callers hold writerMu.
func configureLogDirCleanerLocked(logDir string, maxTotalMB int, protectedPath string) {
	stopLogDirCleanerLocked()
	if maxTotalMB <= 0 {
		return
	}

	limit := int64(maxTotalMB) * 1024 * 1024
	stop := make(chan struct{})
	done := make(chan struct{})
	cleanerStop, cleanerDone = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(logDirCleanInterval)
		defer ticker.Stop()
		for {
			if removed, err := enforceLogDirSizeLimit(logDir, limit, protectedPath); err != nil {
				log.Warnf("logging: failed to clean log directory: %v", err)
			} else if removed > 0 {
				log.Debugf("logging: removed %d old log files from %s", removed, logDir)
			}
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

func stopLogDirCleanerLocked() {
	if cleanerStop == nil {
		return
	}
	close(cleanerStop)
	<-cleanerDone
	cleanerStop, cleanerDone = nil, nil
}

// enforceLogDirSizeLimit deletes the oldest *.log files in dir until their total size is
// at most limit. protectedPath is never deleted. It returns the number of removed files.
func enforceLogDirSizeLimit(dir string, limit int64, protectedPath string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	type logFile struct {
		path    string
		size    int64
		modTime time.Time
	}

	var files []logFile
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
		files = append(files, logFile{path: filepath.Join(dir, e.Name()), size: info.Size(), modTime: info.ModTime()})
	}
	if total <= limit {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	removed := 0
	for _, f := range files {
		if total <= limit {
			break
		}
		if protectedPath != "" && filepath.Clean(f.path) == filepath.Clean(protectedPath) {
			continue
		}
		if err := os.Remove(f.path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, err
		}
		total -= f.size
		removed++
	}
	return removed, nil
}
