package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return s
}

func permanentArtifacts(t *testing.T, s *LocalStorage, folder string) []ArtifactInfo {
	t.Helper()
	infos, err := s.List(folder, KindConfig)
	require.NoError(t, err)
	return infos
}

func TestFolderFor(t *testing.T) {
	s := newTestStorage(t)

	folder, err := s.FolderFor("192.168.0.161")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.BaseDir(), "192.168.0.161"), folder)
	assert.DirExists(t, folder)

	again, err := s.FolderFor("192.168.0.161")
	require.NoError(t, err)
	assert.Equal(t, folder, again)

	v6, err := s.FolderFor("fe80::1")
	require.NoError(t, err)
	assert.Equal(t, "fe80--1", filepath.Base(v6))

	_, err = s.FolderFor("  ")
	assert.True(t, cwerrors.Is(err, cwerrors.ErrStorage))
}

func TestExistingFolder(t *testing.T) {
	s := newTestStorage(t)

	_, ok := s.ExistingFolder("r1")
	assert.False(t, ok)
	assert.NoDirExists(t, filepath.Join(s.BaseDir(), "r1"))

	created, err := s.FolderFor("r1")
	require.NoError(t, err)
	folder, ok := s.ExistingFolder("r1")
	assert.True(t, ok)
	assert.Equal(t, created, folder)
}

func TestLastArtifact_EmptyFolder(t *testing.T) {
	s := newTestStorage(t)
	folder, err := s.FolderFor("r1")
	require.NoError(t, err)

	path, ok, err := s.LastArtifact(folder, KindConfig)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, path)
}

func TestLastArtifact_PicksLatestAndIgnoresOtherFiles(t *testing.T) {
	s := newTestStorage(t)
	folder, err := s.FolderFor("r1")
	require.NoError(t, err)

	files := []string{
		"r1_config_2024-03-01_10-00-00.txt",
		"r1_config_2024-12-31_23-59-59.txt",
		"r1_config_2024-03-01_09-59-59.txt",
		"r1_evidence_2025-01-01_00-00-00.txt",
		CurrentFile,
		ScratchFile,
		ManifestFile,
		"notes.txt",
	}
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(folder, name), []byte("x\n"), 0o644))
	}

	path, ok, err := s.LastArtifact(folder, KindConfig)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1_config_2024-12-31_23-59-59.txt", filepath.Base(path))

	path, ok, err = s.LastArtifact(folder, KindEvidence)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1_evidence_2025-01-01_00-00-00.txt", filepath.Base(path))

	all, err := s.List(folder, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestWriteScratchOverwrites(t *testing.T) {
	s := newTestStorage(t)
	folder, err := s.FolderFor("r1")
	require.NoError(t, err)

	path, err := s.WriteScratch(folder, "first\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(folder, ScratchFile), path)

	_, err = s.WriteScratch(folder, "second\n")
	require.NoError(t, err)

	content, err := s.ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", content)

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCommit(t *testing.T) {
	s := newTestStorage(t)
	folder, err := s.FolderFor("r1")
	require.NoError(t, err)

	scratch, err := s.WriteScratch(folder, "hostname R1\n")
	require.NoError(t, err)

	ts := time.Date(2024, 3, 4, 10, 15, 2, 0, time.UTC)
	final, err := s.Commit(scratch, folder, "r1", ts)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(folder, "r1_config_2024-03-04_10-15-02.txt"), final)
	assert.NoFileExists(t, scratch)

	content, err := s.ReadArtifact(final)
	require.NoError(t, err)
	assert.Equal(t, "hostname R1\n", content)

	current, err := s.ReadArtifact(filepath.Join(folder, CurrentFile))
	require.NoError(t, err)
	assert.Equal(t, "hostname R1\n", current)

	assert.Len(t, permanentArtifacts(t, s, folder), 1)
}

func TestCommit_NeverOverwrites(t *testing.T) {
	s := newTestStorage(t)
	folder, err := s.FolderFor("r1")
	require.NoError(t, err)

	ts := time.Date(2024, 3, 4, 10, 15, 2, 0, time.UTC)
	scratch, err := s.WriteScratch(folder, "v1\n")
	require.NoError(t, err)
	final, err := s.Commit(scratch, folder, "r1", ts)
	require.NoError(t, err)

	scratch, err = s.WriteScratch(folder, "v2\n")
	require.NoError(t, err)
	_, err = s.Commit(scratch, folder, "r1", ts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArtifactExists)
	assert.True(t, cwerrors.Is(err, cwerrors.ErrStorage))

	content, err := s.ReadArtifact(final)
	require.NoError(t, err)
	assert.Equal(t, "v1\n", content)
}

func TestCommit_MissingScratch(t *testing.T) {
	s := newTestStorage(t)
	folder, err := s.FolderFor("r1")
	require.NoError(t, err)

	_, err = s.Commit(filepath.Join(folder, ScratchFile), folder, "r1", time.Now())
	assert.True(t, cwerrors.Is(err, cwerrors.ErrStorage))
	assert.Empty(t, permanentArtifacts(t, s, folder))
}

func TestDiscardScratch(t *testing.T) {
	s := newTestStorage(t)
	folder, err := s.FolderFor("r1")
	require.NoError(t, err)

	scratch, err := s.WriteScratch(folder, "x\n")
	require.NoError(t, err)

	require.NoError(t, s.DiscardScratch(scratch))
	assert.NoFileExists(t, scratch)

	// already gone
	require.NoError(t, s.DiscardScratch(scratch))
}

func TestCommitTime_Monotonic(t *testing.T) {
	s := newTestStorage(t)
	folder, err := s.FolderFor("r1")
	require.NoError(t, err)

	now := time.Date(2024, 3, 4, 10, 15, 2, 500_000_000, time.UTC)

	ts, err := s.CommitTime(folder, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 10, 15, 2, 0, time.UTC), ts)

	scratch, err := s.WriteScratch(folder, "v1\n")
	require.NoError(t, err)
	_, err = s.Commit(scratch, folder, "r1", ts)
	require.NoError(t, err)

	// same second
	next, err := s.CommitTime(folder, now)
	require.NoError(t, err)
	assert.Equal(t, ts.Add(time.Second), next)

	// clock stepped backwards
	next, err = s.CommitTime(folder, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ts.Add(time.Second), next)

	// normal progress
	next, err = s.CommitTime(folder, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, ts.Add(time.Minute), next)
}

func TestWriteEvidence(t *testing.T) {
	s := newTestStorage(t)
	folder, err := s.FolderFor("r1")
	require.NoError(t, err)

	ts := time.Date(2024, 3, 4, 10, 15, 2, 0, time.UTC)
	path, err := s.WriteEvidence(folder, "r1", ts, ">>> show ip route\n")
	require.NoError(t, err)
	assert.Equal(t, "r1_evidence_2024-03-04_10-15-02.txt", filepath.Base(path))

	_, err = s.WriteEvidence(folder, "r1", ts, "again")
	assert.ErrorIs(t, err, ErrArtifactExists)

	content, err := s.ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, ">>> show ip route\n", content)
}

func TestDevices(t *testing.T) {
	s := newTestStorage(t)
	for _, id := range []string{"r2", "r1"} {
		_, err := s.FolderFor(id)
		require.NoError(t, err)
	}
	require.NoError(t, os.Mkdir(filepath.Join(s.BaseDir(), ".git"), 0o755))

	devices, err := s.Devices()
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, devices)
}

func TestArtifactNameRoundTrip(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	name := ArtifactName("core_sw_1", KindConfig, ts)
	assert.Equal(t, "core_sw_1_config_2025-01-02_03-04-05.txt", name)

	info, err := parseArtifactName(name)
	require.NoError(t, err)
	assert.Equal(t, "core_sw_1", info.Device)
	assert.Equal(t, KindConfig, info.Kind)
	assert.True(t, ts.Equal(info.Timestamp))

	_, err = parseArtifactName("current_config.txt")
	assert.Error(t, err)
}
