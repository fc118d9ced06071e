package storage

import (
	"time"
)

// Artifact kinds stored in a device folder
const (
	KindConfig   = "config"
	KindEvidence = "evidence"
)

// Well-known files inside a device folder
const (
	ScratchFile  = ".scratch_config.txt"
	CurrentFile  = "current_config.txt"
	ManifestFile = "manifest.jsonl"
	LockFile     = ".cfgwatch.lock"
)

// TimestampLayout is the second-resolution timestamp embedded in artifact
// names. Lexicographic order of names equals chronological order.
const TimestampLayout = "2006-01-02_15-04-05"

// ArtifactStore persists configuration backups, one folder per device.
type ArtifactStore interface {
	FolderFor(deviceID string) (string, error)
	LastArtifact(folder, kind string) (string, bool, error)
	WriteScratch(folder, text string) (string, error)
	Commit(scratchPath, folder, deviceID string, ts time.Time) (string, error)
	DiscardScratch(path string) error

	CommitTime(folder string, now time.Time) (time.Time, error)
	WriteEvidence(folder, deviceID string, ts time.Time, text string) (string, error)
	ReadArtifact(path string) (string, error)
	List(folder, kind string) ([]ArtifactInfo, error)
	Devices() ([]string, error)

	AppendManifest(folder string, entry ManifestEntry) error
	ReadManifest(folder string) ([]ManifestEntry, error)
}

// ArtifactInfo provides metadata about a stored artifact
type ArtifactInfo struct {
	Device    string    `json:"device" yaml:"device"`
	Kind      string    `json:"kind" yaml:"kind"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Name      string    `json:"name" yaml:"name"`
	FilePath  string    `json:"file_path" yaml:"file_path"`
	FileSize  int64     `json:"file_size" yaml:"file_size"`
}

// ManifestEntry is one line of a device folder's append-only manifest.
type ManifestEntry struct {
	ID        string    `json:"id" yaml:"id"`
	CycleID   string    `json:"cycle_id,omitempty" yaml:"cycle_id,omitempty"`
	Device    string    `json:"device" yaml:"device"`
	Kind      string    `json:"kind" yaml:"kind"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	File      string    `json:"file" yaml:"file"`
	SHA256    string    `json:"sha256" yaml:"sha256"`
	Size      int64     `json:"size" yaml:"size"`
	Added     int       `json:"diff_added" yaml:"diff_added"`
	Removed   int       `json:"diff_removed" yaml:"diff_removed"`
}

// Config holds storage configuration
type Config struct {
	BaseDir string `json:"base_dir"`
}
