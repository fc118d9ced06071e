package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
)

type memoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    map[string]bool
}

func newMemoryUploader() *memoryUploader {
	return &memoryUploader{objects: map[string][]byte{}, fail: map[string]bool{}}
}

func (u *memoryUploader) Put(ctx context.Context, key string, data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail[key] {
		return fmt.Errorf("access denied")
	}
	u.objects[key] = data
	return nil
}

func (u *memoryUploader) Location(key string) string {
	return "mem://" + key
}

func TestMirror_Upload(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "r1_config_2025-03-01_10-00-00.txt")
	ev := filepath.Join(dir, "r1_evidence_2025-03-01_10-00-00.txt")
	require.NoError(t, os.WriteFile(cfg, []byte("hostname R1\n"), 0o644))
	require.NoError(t, os.WriteFile(ev, []byte("evidence\n"), 0o644))

	up := newMemoryUploader()
	up.fail["backups/r1/r1_evidence_2025-03-01_10-00-00.txt"] = true

	results := New(up, "/backups/", nil).Upload(context.Background(), "r1", []string{cfg, ev})
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "mem://backups/r1/r1_config_2025-03-01_10-00-00.txt", results[0].Location)
	assert.Equal(t, []byte("hostname R1\n"), up.objects["backups/r1/r1_config_2025-03-01_10-00-00.txt"])

	require.Error(t, results[1].Err)
	assert.True(t, cwerrors.Is(results[1].Err, cwerrors.ErrStorage))
}

func TestMirror_MissingFile(t *testing.T) {
	results := New(newMemoryUploader(), "", nil).Upload(context.Background(), "r1", []string{"/nonexistent/x.txt"})
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}

func TestMirror_KeyWithoutPrefix(t *testing.T) {
	m := New(newMemoryUploader(), "", nil)
	assert.Equal(t, "r1/current_config.txt", m.Key("r1", "/var/backups/r1/current_config.txt"))
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Uploader_Put(t *testing.T) {
	api := &fakeS3{}
	u := &S3Uploader{client: api, bucket: "net-backups"}

	require.NoError(t, u.Put(context.Background(), "r1/a.txt", []byte("data")))
	assert.Equal(t, "net-backups", aws.ToString(api.input.Bucket))
	assert.Equal(t, "r1/a.txt", aws.ToString(api.input.Key))
	assert.Equal(t, []byte("data"), api.body)
	assert.Equal(t, "s3://net-backups/r1/a.txt", u.Location("r1/a.txt"))
}

func TestNewUploader_Validation(t *testing.T) {
	_, err := NewUploader(context.Background(), Config{Backend: "s3"})
	assert.True(t, cwerrors.Is(err, cwerrors.ErrInvalidConfiguration))

	_, err = NewUploader(context.Background(), Config{Backend: "ftp", Bucket: "b"})
	assert.True(t, cwerrors.Is(err, cwerrors.ErrInvalidConfiguration))

	_, err = NewUploader(context.Background(), Config{Backend: "azure", Bucket: "b"})
	assert.Error(t, err)
}

func TestAzureUploader_Location(t *testing.T) {
	// "a2V5" is base64 for "key"
	u, err := NewAzureUploader("acct", "a2V5", "backups")
	require.NoError(t, err)
	assert.Equal(t, "https://acct.blob.core.windows.net/backups/r1/a.txt", u.Location("r1/a.txt"))
}
