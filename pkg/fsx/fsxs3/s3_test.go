package fsxs3_test

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/fsx"
	"github.com/Abraxas-365/drugcontent/pkg/fsx/fsxs3"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type object struct {
	data        []byte
	contentType string
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string]object{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = object{data: data, contentType: aws.ToString(in.ContentType)}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(o.data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bucket := aws.ToString(in.Bucket) + "/"
	var keys []string
	for k := range f.objects {
		if key, ok := strings.CutPrefix(k, bucket); ok && strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[bucket+k].data))),
			LastModified: aws.Time(time.Unix(0, 0)),
		})
	}
	return out, nil
}

func TestS3RoundTrip(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	store := fsxs3.New(api, "bucket", "/job-archive/")

	require.NoError(t, store.WriteFile(ctx, "content-enhancement/completed/a.json", []byte(`[1]`), "application/json"))
	require.NoError(t, store.WriteFile(ctx, "content-batch/completed/b.json", []byte(`[2]`), ""))

	assert.Equal(t, "application/json", api.objects["bucket/job-archive/content-enhancement/completed/a.json"].contentType)

	data, err := store.ReadFile(ctx, "content-enhancement/completed/a.json")
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(data))

	files, err := store.List(ctx, "content-enhancement")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "content-enhancement/completed/a.json", files[0].Path)
	assert.Equal(t, int64(3), files[0].Size)

	ok, err := store.Exists(ctx, "content-batch/completed/b.json")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.DeleteFile(ctx, "content-batch/completed/b.json"))
	ok, err = store.Exists(ctx, "content-batch/completed/b.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.ReadFile(ctx, "missing.json")
	assert.True(t, errx.IsCode(err, fsx.ErrNotFound))
}
