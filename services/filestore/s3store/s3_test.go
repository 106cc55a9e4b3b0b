package s3store

import (
	"context"
	"io"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
)

type fakeS3 struct {
	objects   map[string]string
	types     map[string]string
	lengths   map[string]int64
	seekable  map[string]bool
	failPut   bool
	deleteErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut {
		return nil, errors.New("access denied")
	}
	_, canSeek := in.Body.(io.ReadSeeker)
	f.seekable[aws.ToString(in.Key)] = canSeek
	f.lengths[aws.ToString(in.Key)] = aws.ToInt64(in.ContentLength)
	data, err := ioutil.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(data)
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{ETag: aws.String("etag")}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newTestStore() (*Store, *fakeS3) {
	fake := &fakeS3{
		objects:  map[string]string{},
		types:    map[string]string{},
		lengths:  map[string]int64{},
		seekable: map[string]bool{},
	}
	conf := &core.Config{S3: core.S3Config{Bucket: "elimu", PublicBaseURL: "https://cdn.elimu.test/"}}
	return New(fake, conf), fake
}

func TestStore_SaveAndRemove(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore()

	url, err := store.Save(ctx, "teacher_image-1-2.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.elimu.test/uploads/teacher_image-1-2.png", url)
	assert.Equal(t, "png", fake.objects["elimu/uploads/teacher_image-1-2.png"])
	assert.Equal(t, "image/png", fake.types["uploads/teacher_image-1-2.png"])

	require.NoError(t, store.Remove(ctx, url))
	assert.Empty(t, fake.objects)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestStore_SaveSizedBody(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore()

	partlyRead := strings.NewReader("xxhello")
	_, _ = partlyRead.Seek(2, io.SeekStart)
	tests := []struct {
		name string
		body io.Reader
		want string
	}{
		{name: "stream", body: io.MultiReader(strings.NewReader("%PDF"), strings.NewReader("-1.4")), want: "%PDF-1.4"},
		{name: "seeker", body: strings.NewReader("png"), want: "png"},
		{name: "seeker already read from", body: partlyRead, want: "hello"},
		{name: "empty", body: io.MultiReader(), want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "uploads/" + tt.name
			_, err := store.Save(ctx, tt.name, "application/octet-stream", tt.body)
			require.NoError(t, err)
			assert.True(t, fake.seekable[key])
			assert.Equal(t, int64(len(tt.want)), fake.lengths[key])
			assert.Equal(t, tt.want, fake.objects["elimu/"+key])
		})
	}

	t.Run("read error", func(t *testing.T) {
		tooLarge := &core.FileTooLargeError{Field: "course_file", Limit: 1}
		_, err := store.Save(ctx, "big.pdf", "application/pdf", io.MultiReader(strings.NewReader("x"), failingReader{tooLarge}))
		assert.Equal(t, tooLarge, errors.Cause(err))
		assert.NotContains(t, fake.objects, "elimu/uploads/big.pdf")
	})
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore()

	fake.failPut = true
	_, err := store.Save(ctx, "a.pdf", "application/pdf", strings.NewReader("x"))
	assert.Error(t, err)

	assert.Error(t, store.Remove(ctx, "/uploads/a.pdf"), "foreign url")

	fake.deleteErr = errors.New("timeout")
	assert.Error(t, store.Remove(ctx, "https://cdn.elimu.test/uploads/a.pdf"))
}
