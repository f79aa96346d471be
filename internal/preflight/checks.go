package preflight

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"vodwatch/internal/config"
	"vodwatch/internal/deps"
)

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

// CheckSystemDeps evaluates the external binaries named in cfg. The doctor
// command and the monitor startup snapshot share this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

// CheckChannels reports whether any channel is being watched.
func CheckChannels(cfg *config.Config) Result {
	const name = "Watch list"
	n := len(cfg.Channels.Watch)
	if n == 0 {
		return Result{Name: name, Detail: "no channels configured (vodwatch channels add <name>)"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d channel(s)", n)}
}

// MonitorRunning reports whether another process holds the monitor lock.
func MonitorRunning(cfg *config.Config) (bool, error) {
	path := cfg.LockPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe monitor lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}
