package backup

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirStore_PutAndList(t *testing.T) {
	ctx := context.Background()
	store := NewDirStore(filepath.Join(t.TempDir(), "backups"))

	infos, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)

	info, err := store.Put(ctx, "b.json", []byte(`{"b": 1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(8), info.Size)

	_, err = store.Put(ctx, "a.json", []byte(`{}`))
	require.NoError(t, err)

	_, err = store.Put(ctx, "a.json", []byte(`{}`))
	assert.Error(t, err, "existing backups are never overwritten")

	_, err = store.Put(ctx, "../escape.json", []byte(`{}`))
	assert.Error(t, err)

	infos, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a.json", infos[0].Name)
	assert.Equal(t, "b.json", infos[1].Name)
}

type fakeS3 struct {
	objects map[string][]byte
	pages   int
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

// ListObjectsV2 returns one object per page to exercise continuation.
func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.pages++
	prefix := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if start < len(keys) {
		k := keys[start]
		out.Contents = []types.Object{{
			Key:          aws.String(strings.TrimPrefix(k, aws.ToString(in.Bucket)+"/")),
			Size:         aws.Int64(int64(len(f.objects[k]))),
			LastModified: aws.Time(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		}}
		if start+1 < len(keys) {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(keys[start+1])
		}
	}
	return out, nil
}

func TestS3Store_PutAndList(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{"bucket/other/skip.json": []byte("{}")}}
	store := NewS3Store(fake, "bucket", "tofu/")

	info, err := store.Put(ctx, "one.json", []byte(`{"x": 1}`))
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/tofu/one.json", info.Location)
	assert.Equal(t, []byte(`{"x": 1}`), fake.objects["bucket/tofu/one.json"])

	_, err = store.Put(ctx, "two.json", []byte(`{}`))
	require.NoError(t, err)

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "one.json", infos[0].Name)
	assert.Equal(t, int64(8), infos[0].Size)
	assert.Equal(t, "two.json", infos[1].Name)
	assert.Equal(t, 2, fake.pages)
}

func TestNewName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

	a, b := NewName(at), NewName(at)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "tofu_data_20240309-140506_"))
	assert.True(t, strings.HasSuffix(a, Extension))
	assert.Equal(t, a, filepath.Base(a))
}
