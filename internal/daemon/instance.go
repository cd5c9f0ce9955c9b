package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Instance describes the running daemon to the CLI.
type Instance struct {
	PID      int       `json:"pid"`
	Socket   string    `json:"socket"`
	HTTPAddr string    `json:"http_addr,omitempty"`
	Version  string    `json:"version"`
	Started  time.Time `json:"started"`
}

// InstanceFile is the record a running daemon keeps next to its lock.
type InstanceFile struct {
	path string
}

func NewInstanceFile(path string) *InstanceFile {
	return &InstanceFile{path: path}
}

// Write records inst, filling in this process's PID and the start time
// when they are unset. A symlink in the way is refused.
func (f *InstanceFile) Write(inst Instance) error {
	if inst.PID == 0 {
		inst.PID = os.Getpid()
	}
	if inst.Started.IsZero() {
		inst.Started = time.Now()
	}
	if info, err := os.Lstat(f.path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("refusing to write %s: is a symlink", f.path)
	}

	data, err := json.MarshalIndent(inst, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write instance file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write instance file: %w", err)
	}
	return nil
}

// Read returns the recorded instance, or a zero Instance when there is
// none. A file holding only a PID is accepted.
func (f *InstanceFile) Read() (Instance, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Instance{}, nil
		}
		return Instance{}, err
	}

	content := bytes.TrimSpace(data)
	if len(content) == 0 {
		return Instance{}, nil
	}

	var inst Instance
	if content[0] == '{' {
		if err := json.Unmarshal(content, &inst); err != nil {
			return Instance{}, fmt.Errorf("invalid instance file: %w", err)
		}
	} else if inst.PID, err = strconv.Atoi(string(content)); err != nil {
		return Instance{}, fmt.Errorf("invalid PID in file: %w", err)
	}

	if inst.PID <= 0 {
		return Instance{}, fmt.Errorf("invalid PID: %d (must be positive)", inst.PID)
	}
	return inst, nil
}

// Alive reports whether the recorded process still exists.
func (f *InstanceFile) Alive() bool {
	inst, err := f.Read()
	if err != nil || inst.PID == 0 {
		return false
	}
	return processAlive(inst.PID)
}

func (f *InstanceFile) Remove() error {
	if info, err := os.Lstat(f.path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("refusing to remove %s: is a symlink", f.path)
	}
	return os.Remove(f.path)
}

func (f *InstanceFile) Path() string {
	return f.path
}
