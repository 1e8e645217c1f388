package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const logStamp = "20060102_150405"

// LogFile is the per-run log file opened by OpenLogFile.
type LogFile struct {
	*os.File
	Path string
	// Rotated is the path the previous file of the same name was moved to,
	// empty when there was none.
	Rotated string
}

func logFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", appName, sessionStart.Format(logStamp)))
}

// OpenLogFile creates logsDir and opens the log for a run started at
// sessionStart. A file left by a run started in the same second is kept
// as <name>.old.
func OpenLogFile(logsDir, appName string, sessionStart time.Time) (*LogFile, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}

	lf := &LogFile{Path: logFilePath(logsDir, appName, sessionStart)}
	if _, err := os.Stat(lf.Path); err == nil {
		old := lf.Path + ".old"
		if err := os.Rename(lf.Path, old); err != nil {
			return nil, fmt.Errorf("rotating log file %s: %w", lf.Path, err)
		}
		lf.Rotated = old
	}

	f, err := os.OpenFile(lf.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", lf.Path, err)
	}
	lf.File = f
	return lf, nil
}
