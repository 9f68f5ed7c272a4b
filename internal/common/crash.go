// -----------------------------------------------------------------------
// Crash reports - panic recovery for the single-shot run
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// crashDir is where crash reports are written; empty means stderr only
var crashDir string

// InstallCrashHandler sets the crash report directory, creating it if needed.
// Pair with a deferred RecoverWithCrashReport at the top of main.
func InstallCrashHandler(dir string) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: failed to create crash directory: %v\n", err)
		return
	}
	crashDir = dir
}

// BuildCrashReport renders a panic value and stack trace with version and
// runtime details.
func BuildCrashReport(panicVal interface{}, stackTrace string, at time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== GAMEMASTER CRASH REPORT ===\n")
	fmt.Fprintf(&b, "Time: %s\n", at.Format(time.RFC3339))
	fmt.Fprintf(&b, "Version: %s\n", GetFullVersion())
	fmt.Fprintf(&b, "GOOS/GOARCH: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "Go: %s\n\n", runtime.Version())

	fmt.Fprintf(&b, "=== PANIC ===\n%v\n\n", panicVal)
	fmt.Fprintf(&b, "=== STACK TRACE ===\n%s\n", stackTrace)
	b.WriteString("=== END CRASH REPORT ===\n")

	return b.String()
}

// WriteCrashReport writes report to dir and returns the file path
func WriteCrashReport(dir, report string, at time.Time) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", at.Format("2006-01-02T15-04-05")))
	if err := os.WriteFile(path, []byte(report), 0644); err != nil {
		return "", fmt.Errorf("failed to write crash report: %w", err)
	}
	return path, nil
}

// RecoverWithCrashReport recovers a panic, writes the report to stderr and,
// when InstallCrashHandler was called, to a crash file, then exits with 2.
// Usage: defer common.RecoverWithCrashReport()
func RecoverWithCrashReport() {
	r := recover()
	if r == nil {
		return
	}

	now := time.Now()
	report := BuildCrashReport(r, string(debug.Stack()), now)
	fmt.Fprint(os.Stderr, report)

	if crashDir != "" {
		if path, err := WriteCrashReport(crashDir, report, now); err != nil {
			fmt.Fprintf(os.Stderr, "CRASH: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Crash report saved to: %s\n", path)
		}
	}

	os.Exit(2)
}
