package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	body        []byte
	contentType string
	modified    time.Time
}

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string]fakeObject
	headErr   error
	listCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{body: data, contentType: aws.ToString(in.ContentType), modified: time.Now()}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.body))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key, obj := range f.objects {
		if !strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			continue
		}
		out.Contents = append(out.Contents, s3types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.body))),
			LastModified: aws.Time(obj.modified),
		})
	}
	return out, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Store_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewS3Store(fake, "bucket", "/uploads/")

	ref, err := store.Save(ctx, "street.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, URLPrefix))

	name, err := NameFromRef(ref)
	require.NoError(t, err)
	stored, ok := fake.objects["uploads/"+name]
	require.True(t, ok)
	assert.Equal(t, "image/png", stored.contentType)

	body, err := store.Open(ctx, ref)
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	body.Close()
	assert.Equal(t, "png-bytes", string(data))

	objects, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, ref, objects[0].Ref)

	require.NoError(t, store.Delete(ctx, ref))
	_, err = store.Open(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_ListIgnoresNestedKeys(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["uploads/nested/x.jpg"] = fakeObject{body: []byte("x")}
	fake.objects["other/y.jpg"] = fakeObject{body: []byte("y")}
	fake.objects["uploads/1.jpg"] = fakeObject{body: []byte("z")}

	objects, err := NewS3Store(fake, "bucket", "uploads").List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "/uploads/1.jpg", objects[0].Ref)
}

func TestS3Store_RejectsInvalidRef(t *testing.T) {
	store := NewS3Store(newFakeS3(), "bucket", "")

	_, err := store.Open(context.Background(), "/uploads/../x")
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestS3Store_CheckDoesNotList(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	for i := 0; i < 100; i++ {
		fake.objects["uploads/"+strconv.Itoa(i)+".jpg"] = fakeObject{body: []byte("x")}
	}
	store := NewS3Store(fake, "bucket", "uploads")

	require.NoError(t, store.Check(ctx))
	assert.Zero(t, fake.listCalls)

	fake.headErr = errors.New("access denied")
	err := store.Check(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}
