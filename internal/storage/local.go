package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
)

// ErrArtifactExists is returned when a commit would replace a permanent artifact.
var ErrArtifactExists = errors.New("permanent artifact already exists")

var artifactNamePattern = regexp.MustCompile(`^(.+)_([a-z]+)_(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2})\.txt$`)

// LocalStorage implements ArtifactStore on the local filesystem:
//
//	<base>/<device>/.scratch_config.txt
//	<base>/<device>/current_config.txt
//	<base>/<device>/manifest.jsonl
//	<base>/<device>/<device>_<kind>_<YYYY-MM-DD_HH-MM-SS>.txt
type LocalStorage struct {
	config  Config
	baseDir string
	writer  *AtomicWriter
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(config Config) (*LocalStorage, error) {
	if config.BaseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		config.BaseDir = filepath.Join(homeDir, ".cfgwatch", "backups")
	}

	if err := os.MkdirAll(config.BaseDir, 0o755); err != nil {
		return nil, cwerrors.StorageError("mkdir", config.BaseDir, err)
	}

	return &LocalStorage{
		config:  config,
		baseDir: config.BaseDir,
		writer:  NewAtomicWriter(0o644),
	}, nil
}

// BaseDir returns the backup root
func (s *LocalStorage) BaseDir() string {
	return s.baseDir
}

// FolderFor returns the device folder, creating it on first use
func (s *LocalStorage) FolderFor(deviceID string) (string, error) {
	name := sanitizeFilename(deviceID)
	if name == "" {
		return "", cwerrors.StorageError("resolve folder", s.baseDir, fmt.Errorf("empty device identifier"))
	}

	folder := filepath.Join(s.baseDir, name)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", cwerrors.StorageError("mkdir", folder, err)
	}
	return folder, nil
}

// ExistingFolder returns the device folder without creating it
func (s *LocalStorage) ExistingFolder(deviceID string) (string, bool) {
	name := sanitizeFilename(deviceID)
	if name == "" {
		return "", false
	}
	folder := filepath.Join(s.baseDir, name)
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return folder, false
	}
	return folder, true
}

// LastArtifact returns the lexicographically last artifact of kind in folder
func (s *LocalStorage) LastArtifact(folder, kind string) (string, bool, error) {
	infos, err := s.List(folder, kind)
	if err != nil {
		return "", false, err
	}
	if len(infos) == 0 {
		return "", false, nil
	}
	return infos[len(infos)-1].FilePath, true, nil
}

// WriteScratch overwrites the folder's scratch artifact with text
func (s *LocalStorage) WriteScratch(folder, text string) (string, error) {
	path := filepath.Join(folder, ScratchFile)
	if err := s.writer.WriteFile(path, []byte(text)); err != nil {
		return "", cwerrors.StorageError("write scratch", path, err)
	}
	return path, nil
}

// Commit promotes the scratch artifact to a permanent, timestamped artifact
// and refreshes current_config.txt. It never replaces an existing artifact.
func (s *LocalStorage) Commit(scratchPath, folder, deviceID string, ts time.Time) (string, error) {
	finalPath := filepath.Join(folder, ArtifactName(deviceID, KindConfig, ts))

	data, err := os.ReadFile(scratchPath)
	if err != nil {
		return "", cwerrors.StorageError("read scratch", scratchPath, err)
	}

	if err := linkNoClobber(scratchPath, finalPath); err != nil {
		if os.IsExist(err) {
			return "", cwerrors.StorageError("commit", finalPath, ErrArtifactExists)
		}
		return "", cwerrors.StorageError("commit", finalPath, err)
	}

	if err := os.Remove(scratchPath); err != nil && !os.IsNotExist(err) {
		return finalPath, cwerrors.StorageError("remove scratch", scratchPath, err)
	}

	currentPath := filepath.Join(folder, CurrentFile)
	if err := s.writer.WriteFile(currentPath, data); err != nil {
		return finalPath, cwerrors.StorageError("write current", currentPath, err)
	}

	return finalPath, nil
}

// DiscardScratch deletes the scratch artifact. A missing file is not an error.
func (s *LocalStorage) DiscardScratch(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return cwerrors.StorageError("discard scratch", path, err)
	}
	return nil
}

// CommitTime returns now truncated to seconds, pushed forward when needed so
// it is strictly later than the last committed config artifact.
func (s *LocalStorage) CommitTime(folder string, now time.Time) (time.Time, error) {
	ts := now.UTC().Truncate(time.Second)

	last, ok, err := s.LastArtifact(folder, KindConfig)
	if err != nil || !ok {
		return ts, err
	}

	info, err := parseArtifactName(last)
	if err != nil {
		return ts, nil
	}
	if !ts.After(info.Timestamp) {
		ts = info.Timestamp.Add(time.Second)
	}
	return ts, nil
}

// WriteEvidence stores an evidence bundle next to the config artifact of ts
func (s *LocalStorage) WriteEvidence(folder, deviceID string, ts time.Time, text string) (string, error) {
	path := filepath.Join(folder, ArtifactName(deviceID, KindEvidence, ts))
	if err := s.writer.CreateFile(path, []byte(text)); err != nil {
		if os.IsExist(err) {
			return "", cwerrors.StorageError("write evidence", path, ErrArtifactExists)
		}
		return "", cwerrors.StorageError("write evidence", path, err)
	}
	return path, nil
}

// ReadArtifact returns the content of an artifact
func (s *LocalStorage) ReadArtifact(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", cwerrors.StorageError("read", path, err)
	}
	return string(data), nil
}

// List returns the artifacts of kind in folder, oldest first. An empty kind
// lists every kind.
func (s *LocalStorage) List(folder, kind string) ([]ArtifactInfo, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cwerrors.StorageError("list", folder, err)
	}

	var infos []ArtifactInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := parseArtifactName(entry.Name())
		if err != nil {
			continue
		}
		if kind != "" && info.Kind != kind {
			continue
		}

		if stat, err := entry.Info(); err == nil {
			info.FileSize = stat.Size()
		}
		info.FilePath = filepath.Join(folder, entry.Name())
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	return infos, nil
}

// Devices returns the names of all device folders
func (s *LocalStorage) Devices() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, cwerrors.StorageError("list", s.baseDir, err)
	}

	var devices []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			devices = append(devices, entry.Name())
		}
	}
	sort.Strings(devices)
	return devices, nil
}

// ArtifactName builds {device}_{kind}_{YYYY-MM-DD_HH-MM-SS}.txt
func ArtifactName(deviceID, kind string, ts time.Time) string {
	return fmt.Sprintf("%s_%s_%s.txt", sanitizeFilename(deviceID), kind, ts.UTC().Format(TimestampLayout))
}

// parseArtifactName extracts device, kind and timestamp from an artifact name
func parseArtifactName(name string) (ArtifactInfo, error) {
	base := filepath.Base(name)
	m := artifactNamePattern.FindStringSubmatch(base)
	if m == nil {
		return ArtifactInfo{}, fmt.Errorf("not an artifact name: %s", base)
	}

	ts, err := time.ParseInLocation(TimestampLayout, m[3], time.UTC)
	if err != nil {
		return ArtifactInfo{}, fmt.Errorf("invalid artifact timestamp %q: %w", m[3], err)
	}

	return ArtifactInfo{
		Device:    m[1],
		Kind:      m[2],
		Timestamp: ts,
		Name:      base,
	}, nil
}

// sanitizeFilename removes invalid characters from filenames
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " "}
	result := strings.TrimSpace(name)
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "-")
	}
	return strings.Trim(result, ".")
}
