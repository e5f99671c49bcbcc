package mirror

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttvsnap/ttvsnap/internal/models"
)

type putCall struct {
	bucket      string
	key         string
	contentType string
	body        string
}

type fakePutter struct {
	calls []putCall
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, putCall{
		bucket:      *in.Bucket,
		key:         *in.Key,
		contentType: *in.ContentType,
		body:        string(body),
	})
	return &s3.PutObjectOutput{}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPublishUploadsCaptureAndThumbnail(t *testing.T) {
	base := t.TempDir()
	img := filepath.Join(base, "2024-05-01", "2024-05-01_12-30-45.jpg")
	thumb := filepath.Join(base, "2024-05-01", "2024-05-01_12-30-45_thumb.jpg")
	writeFile(t, img, "full")
	writeFile(t, thumb, "small")

	putter := &fakePutter{}
	m := newWithClient(putter, Config{Bucket: "snaps", Prefix: "/somechannel/", BaseDir: base})

	err := m.Publish(context.Background(), models.Capture{Path: img, ThumbnailPath: thumb})
	require.NoError(t, err)

	require.Len(t, putter.calls, 2)
	assert.Equal(t, putCall{
		bucket:      "snaps",
		key:         "somechannel/2024-05-01/2024-05-01_12-30-45.jpg",
		contentType: "image/jpeg",
		body:        "full",
	}, putter.calls[0])
	assert.Equal(t, "somechannel/2024-05-01/2024-05-01_12-30-45_thumb.jpg", putter.calls[1].key)
}

func TestPublishErrors(t *testing.T) {
	base := t.TempDir()

	putter := &fakePutter{}
	m := newWithClient(putter, Config{Bucket: "snaps", BaseDir: base})
	err := m.Publish(context.Background(), models.Capture{Path: filepath.Join(base, "missing.jpg")})
	assert.Error(t, err)
	assert.Empty(t, putter.calls)

	img := filepath.Join(base, "a.png")
	writeFile(t, img, "x")
	failing := newWithClient(&fakePutter{err: errors.New("access denied")}, Config{Bucket: "snaps", BaseDir: base})
	err = failing.Publish(context.Background(), models.Capture{Path: img})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestKeyWithoutPrefix(t *testing.T) {
	base := t.TempDir()
	m := newWithClient(&fakePutter{}, Config{Bucket: "snaps", BaseDir: base})
	assert.Equal(t, "x.jpg", m.Key(filepath.Join(base, "x.jpg")))
	assert.Equal(t, "s3", m.Name())
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentType("/out/a.jpg"))
	assert.Equal(t, "image/png", ContentType("/out/a.PNG"))
	assert.Equal(t, "application/octet-stream", ContentType("/out/a.bin"))
}

func TestNewValidation(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Bucket: "b", AccessKeyID: "only-id"})
	assert.Error(t, err)

	m, err := New(context.Background(), Config{
		Bucket:          "b",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	assert.NotNil(t, m)
}
