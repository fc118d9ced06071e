package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/cfgwatch/internal/session"
	"github.com/yairfalse/cfgwatch/internal/storage"
	"github.com/yairfalse/cfgwatch/pkg/config"
)

func writeTestConfig(t *testing.T, baseDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfgwatch.yaml")
	content := "device:\n  id: r1\n  host: 192.168.0.161\n  username: admin\n  password: pw\n  insecure_ignore_host_key: true\n" +
		"storage:\n  base_dir: " + baseDir + "\n" +
		"commands:\n  evidence: []\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedArtifacts(t *testing.T, baseDir string, configs ...string) {
	t.Helper()
	store, err := storage.NewLocalStorage(storage.Config{BaseDir: baseDir})
	require.NoError(t, err)
	folder, err := store.FolderFor("r1")
	require.NoError(t, err)

	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, c := range configs {
		scratch, err := store.WriteScratch(folder, c)
		require.NoError(t, err)
		_, err = store.Commit(scratch, folder, "r1", ts.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "", "", "")
	out, err := execute(t, "version", "--short", "--config", writeTestConfig(t, t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", out)
}

func TestNormalizeCommand(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "r1.cfg")
	require.NoError(t, os.WriteFile(raw, []byte("Building configuration...\r\n! Last configuration change at 10:00\r\nhostname R1   \r\n\r\n\r\n!\r\nend\r\n"), 0o644))
	cfgFile := writeTestConfig(t, t.TempDir())

	out, err := execute(t, "normalize", raw, "--config", cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "hostname R1\n\n!\n", out)

	other := filepath.Join(dir, "r1-later.cfg")
	require.NoError(t, os.WriteFile(other, []byte("! Last configuration change at 11:00\nhostname R1\n\n!\n"), 0o644))
	out, err = execute(t, "normalize", raw, "--against", other, "--config", cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "unchanged\n", out)
}

func TestHistoryCommand(t *testing.T) {
	base := t.TempDir()
	seedArtifacts(t, base, "hostname R1\n", "hostname R2\n")
	cfgFile := writeTestConfig(t, base)

	out, err := execute(t, "history", "--config", cfgFile)
	require.NoError(t, err)
	assert.Contains(t, out, "r1_config_2025-03-01_10-00-00.txt")
	assert.Contains(t, out, "r1_config_2025-03-01_11-00-00.txt")

	out, err = execute(t, "history", "r1", "--output", "json", "--limit", "1", "--config", cfgFile)
	require.NoError(t, err)
	var list []storage.ArtifactInfo
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "r1_config_2025-03-01_11-00-00.txt", list[0].Name)

	out, err = execute(t, "history", "unknown-device", "--config", cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "No artifacts found.\n", out)
	assert.NoDirExists(t, filepath.Join(base, "unknown-device"))

	_, err = execute(t, "history", "--kind", "bogus", "--config", cfgFile)
	assert.Error(t, err)
}

func TestDiffCommand(t *testing.T) {
	base := t.TempDir()
	seedArtifacts(t, base, "hostname R1\n!\n", "hostname R2\n!\n")
	cfgFile := writeTestConfig(t, base)

	out, err := execute(t, "diff", "--config", cfgFile)
	require.NoError(t, err)
	assert.Contains(t, out, "-hostname R1\n")
	assert.Contains(t, out, "+hostname R2\n")

	out, err = execute(t, "diff", "r1", "--stat", "--config", cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "r1_config_2025-03-01_10-00-00.txt -> r1_config_2025-03-01_11-00-00.txt: +1 -1 lines\n", out)

	_, err = execute(t, "diff", "r1", "--from", "missing.txt", "--config", cfgFile)
	assert.Error(t, err)
}

func TestDiffCommand_PlainReport(t *testing.T) {
	base := t.TempDir()
	seedArtifacts(t, base, "hostname R1\n!\n", "hostname R2\n!\n")
	cfgFile := writeTestConfig(t, base)

	out, err := execute(t, "diff", "r1", "--no-color", "--config", cfgFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out,
		"r1_config_2025-03-01_10-00-00.txt -> r1_config_2025-03-01_11-00-00.txt: +1 -1 lines\n"))
	assert.Contains(t, out, "+hostname R2\n")

	same := t.TempDir()
	seedArtifacts(t, same, "hostname R1\n", "hostname R1\n")
	out, err = execute(t, "diff", "r1", "--config", writeTestConfig(t, same))
	require.NoError(t, err)
	assert.Equal(t, "No changes detected.\n", out)
}

func TestDiffCommand_NeedsTwoBackups(t *testing.T) {
	base := t.TempDir()
	seedArtifacts(t, base, "hostname R1\n")

	_, err := execute(t, "diff", "--config", writeTestConfig(t, base))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least two backups")
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfgwatch.yaml")
	out, err := execute(t, "init", path, "--config", writeTestConfig(t, t.TempDir()))
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)
}

func TestRunOnce(t *testing.T) {
	color.NoColor = true
	base := t.TempDir()
	cfg, err := config.LoadWith(viper.New(), writeTestConfig(t, base))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	var out bytes.Buffer
	a := &app{cfg: cfg, out: &out, errOut: &bytes.Buffer{}}

	opener := session.NewFakeOpener()
	opener.SetOutput("show running-config", "hostname R1\n!\nend\n")

	store, err := a.store()
	require.NoError(t, err)

	res, err := a.runOnce(context.Background(), opener, store, true)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.True(t, res.Changed())
	assert.Contains(t, out.String(), "r1 changed -> r1_config_")
	assert.NoFileExists(t, filepath.Join(base, "r1", storage.LockFile))

	out.Reset()
	res, err = a.runOnce(context.Background(), opener, store, true)
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.True(t, strings.HasSuffix(out.String(), "r1 unchanged\n"))
}
