package logging

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// SafeName makes a session or vehicle name usable in a file name.
func SafeName(name string) string {
	r := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")
	name = r.Replace(strings.TrimSpace(name))
	if name == "" {
		return "session"
	}
	return name
}
