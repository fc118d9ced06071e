package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
)

// ErrFolderLocked means another live process owns the device folder.
var ErrFolderLocked = errors.New("device folder is locked by another process")

// FolderLock keeps a device folder single-writer across processes.
type FolderLock struct {
	path     string
	pid      int
	acquired bool
}

// Lock acquires the folder lock. A lock left by a dead process is reclaimed.
func Lock(folder string) (*FolderLock, error) {
	l := &FolderLock{
		path: filepath.Join(folder, LockFile),
		pid:  os.Getpid(),
	}

	err := l.tryCreate()
	if err == nil {
		return l, nil
	}
	if !os.IsExist(err) {
		return nil, cwerrors.StorageError("lock", l.path, err)
	}

	owner, readErr := readLockPID(l.path)
	if readErr == nil && processAlive(owner) {
		return nil, cwerrors.StorageError("lock", l.path,
			fmt.Errorf("%w (pid %d)", ErrFolderLocked, owner))
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return nil, cwerrors.StorageError("remove stale lock", l.path, err)
	}
	if err := l.tryCreate(); err != nil {
		return nil, cwerrors.StorageError("lock", l.path, err)
	}
	return l, nil
}

// Release removes the lock file if this process holds it
func (l *FolderLock) Release() error {
	if l == nil || !l.acquired {
		return nil
	}
	l.acquired = false

	owner, err := readLockPID(l.path)
	if err == nil && owner != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return cwerrors.StorageError("unlock", l.path, err)
	}
	return nil
}

// Path returns the lock file location
func (l *FolderLock) Path() string {
	return l.path
}

func (l *FolderLock) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(l.pid)); err != nil {
		os.Remove(l.path)
		return err
	}
	l.acquired = true
	return nil
}

func readLockPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
