package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"clipforge/internal/config"
	"clipforge/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the blocking readiness checks for the given config:
// working directories must be writable, required external tools must be on
// PATH, and API keys must be present. Optional tools are not checked here;
// their absence degrades features instead of blocking startup.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckAPIKey("Selection API key", cfg.Selection.APIKey),
		CheckAPIKey("Generation API key", cfg.Generation.APIKey),
	}

	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		if status.Optional {
			continue
		}
		result := Result{Name: status.Name, Passed: status.Available}
		if status.Available {
			result.Detail = fmt.Sprintf("%s found", status.Command)
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	failed := make([]Result, 0)
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckAPIKey verifies that a credential is present without calling out.
func CheckAPIKey(name, key string) Result {
	if strings.TrimSpace(key) == "" {
		return Result{Name: name, Detail: "missing"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}
