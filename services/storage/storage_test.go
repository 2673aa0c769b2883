package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_Upload(t *testing.T) {
	dir := t.TempDir()
	l := NewLocalStorage(dir, "http://localhost:8080/")

	url, err := l.Upload(context.Background(), "bills/ORD1/a.png", bytes.NewReader([]byte("img")), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/bills/ORD1/a.png", url)

	got, err := os.ReadFile(filepath.Join(dir, "bills", "ORD1", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "img", string(got))

	_, err = l.Upload(context.Background(), "bills/ORD1/a.png", bytes.NewReader([]byte("again")), "image/png")
	assert.Error(t, err, "existing bills are never overwritten")
}

func TestLocalStorage_KeyCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	l := NewLocalStorage(filepath.Join(dir, "root"), "http://x")

	url, err := l.Upload(context.Background(), "../../etc/evil", bytes.NewReader(nil), "")
	require.NoError(t, err)
	assert.Equal(t, "http://x/uploads/etc/evil", url)
	_, statErr := os.Stat(filepath.Join(dir, "root", "etc", "evil"))
	assert.NoError(t, statErr)
}

type fakeS3 struct {
	s3iface.S3API
	got *s3.PutObjectInput
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.got = in
	return &s3.PutObjectOutput{}, nil
}

func TestSpacesStorage_Upload(t *testing.T) {
	fake := &fakeS3{}
	s := newSpacesStorage(fake, "bills-bucket", "sgp1.digitaloceanspaces.com")

	url, err := s.Upload(context.Background(), "bills/ORD1/x.pdf", bytes.NewReader([]byte("%PDF")), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://bills-bucket.sgp1.digitaloceanspaces.com/bills/ORD1/x.pdf", url)
	require.NotNil(t, fake.got)
	assert.Equal(t, "bills-bucket", aws.StringValue(fake.got.Bucket))
	assert.Equal(t, "application/pdf", aws.StringValue(fake.got.ContentType))
	body, _ := io.ReadAll(fake.got.Body)
	assert.Equal(t, "%PDF", string(body))
}

func TestNewSpacesStorage_RequiresBucket(t *testing.T) {
	_, err := NewSpacesStorage(SpacesConfig{Region: "sgp1"})
	assert.Error(t, err)
	assert.False(t, SpacesConfig{Bucket: "b"}.Enabled())
}
