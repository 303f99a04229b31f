package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// PIDFile records the daemon's pid while it runs. It doubles as the
// service's presence signal: Acquire/Release satisfy service.Presence, and
// the stop/status subcommands read it from outside the process.
type PIDFile struct {
	path string
}

func NewPIDFile(baseDir string) (*PIDFile, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create pid directory: %w", err)
	}
	return &PIDFile{path: filepath.Join(baseDir, "clipd.pid")}, nil
}

func (p *PIDFile) Acquire() error {
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (p *PIDFile) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pid file: %w", err)
	}
	return nil
}

// Read returns the recorded pid, or 0 when no daemon has registered.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in file: %w", err)
	}
	return pid, nil
}

// IsRunning checks whether a process with the given pid exists.
func IsRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix FindProcess always succeeds; signal 0 probes existence.
	return process.Signal(syscall.Signal(0)) == nil
}

// Terminate asks the process to shut down, escalating to SIGKILL if SIGTERM
// cannot be delivered.
func Terminate(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		if err := process.Kill(); err != nil {
			return fmt.Errorf("failed to kill process: %w", err)
		}
	}
	return nil
}
