package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// AppName prefixes session log files.
const AppName = "racecore"

// LogFilePath builds the session log path <logsDir>/<name>.<YYYYMMDD_HHMMSS>.log.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}
