package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogRotation moves an oversized or stale log aside before it is reopened.
type LogRotation struct {
	maxSize int64
	maxAge  time.Duration
	now     func() time.Time
}

func NewLogRotation(maxSize int64, maxAge time.Duration) *LogRotation {
	return &LogRotation{
		maxSize: maxSize,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func DefaultRotation() *LogRotation {
	return NewLogRotation(64<<20, 7*24*time.Hour)
}

func (lr *LogRotation) ShouldRotate(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}

	if info.Size() >= lr.maxSize {
		return true
	}
	return lr.now().Sub(info.ModTime()) >= lr.maxAge
}

// RotateIfNeeded returns the archived path, or "" when nothing was moved.
func (lr *LogRotation) RotateIfNeeded(path string) (string, error) {
	if !lr.ShouldRotate(path) {
		return "", nil
	}

	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	archived := fmt.Sprintf("%s-%s%s", base, lr.now().Format("20060102-150405"), ext)

	if err := os.Rename(path, archived); err != nil {
		return "", err
	}
	return archived, nil
}
