package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
)

// NewManifestEntry describes a committed artifact file for the manifest.
func NewManifestEntry(id, device, kind, path string, data []byte) ManifestEntry {
	entry := ManifestEntry{
		ID:     id,
		Device: device,
		Kind:   kind,
		File:   filepath.Base(path),
		SHA256: checksum(data),
		Size:   int64(len(data)),
	}
	if info, err := parseArtifactName(path); err == nil {
		entry.Timestamp = info.Timestamp
	}
	return entry
}

// AppendManifest appends entry as one JSON line and syncs the file
func (s *LocalStorage) AppendManifest(folder string, entry ManifestEntry) error {
	path := filepath.Join(folder, ManifestFile)

	line, err := json.Marshal(entry)
	if err != nil {
		return cwerrors.StorageError("encode manifest", path, err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return cwerrors.StorageError("open manifest", path, err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return cwerrors.StorageError("append manifest", path, err)
	}
	if err := f.Sync(); err != nil {
		return cwerrors.StorageError("sync manifest", path, err)
	}
	return nil
}

// ReadManifest returns all manifest entries in commit order. Lines that do
// not decode, such as a torn final write, are skipped.
func (s *LocalStorage) ReadManifest(folder string) ([]ManifestEntry, error) {
	path := filepath.Join(folder, ManifestFile)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cwerrors.StorageError("open manifest", path, err)
	}
	defer f.Close()

	var entries []ManifestEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry ManifestEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, cwerrors.StorageError("read manifest", path, err)
	}

	return entries, nil
}
