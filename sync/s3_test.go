package sync

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Destination_fullKey(t *testing.T) {
	tests := []struct {
		prefix string
		rel    string
		want   string
	}{
		{"", "foo.txt", "foo.txt"},
		{"backups", "foo.txt", "backups/foo.txt"},
		{"backups/", "foo.txt", "backups/foo.txt"},
		{"backups", "a/b/c.txt", "backups/a/b/c.txt"},
		{"", "/foo.txt", "foo.txt"}, // leading slash stripped
		{"backups", "/a/", "backups/a/"},
	}

	for _, tt := range tests {
		d := &S3Destination{prefix: tt.prefix}
		if got := d.fullKey(tt.rel); got != tt.want {
			t.Errorf("fullKey(prefix=%q, rel=%q) = %q, want %q", tt.prefix, tt.rel, got, tt.want)
		}
	}
}

func TestS3Destination_relKey(t *testing.T) {
	tests := []struct {
		prefix string
		full   string
		want   string
	}{
		{"", "foo.txt", "foo.txt"},
		{"backups", "backups/foo.txt", "foo.txt"},
		{"backups/", "backups/foo.txt", "foo.txt"},
		{"backups", "backups/a/b/c.txt", "a/b/c.txt"},
	}

	for _, tt := range tests {
		d := &S3Destination{prefix: tt.prefix}
		if got := d.relKey(tt.full); got != tt.want {
			t.Errorf("relKey(prefix=%q, full=%q) = %q, want %q", tt.prefix, tt.full, got, tt.want)
		}
	}
}

// TestS3Destination_pathIdentityRoundTrip verifies that listed keys map back
// to the identities they were written for.
func TestS3Destination_pathIdentityRoundTrip(t *testing.T) {
	for _, prefix := range []string{"", "backups", "backups/"} {
		d := NewS3Destination(nil, &S3Config{Bucket: "b", Prefix: prefix})
		for _, path := range []string{"/foo.txt", "/a/b/c.txt", "/a/"} {
			id, ok := d.pathIdentity(d.key(PathIdentity(path)))
			if assert.True(t, ok, path) {
				assert.Equal(t, PathIdentity(path), id, "prefix=%q", prefix)
			}
		}
		_, ok := d.pathIdentity(d.key(OpaqueIdentity("4f1c")))
		assert.False(t, ok, "object space keys are not path identities")
	}
}

func TestS3Destination_key(t *testing.T) {
	d := NewS3Destination(nil, &S3Config{Bucket: "b", Prefix: "backups", ObjectPrefix: "objects"})

	assert.Equal(t, "backups/a/b.txt", d.key(PathIdentity("/a/b.txt")))
	assert.Equal(t, "backups/a/", d.key(PathIdentity("/a/")))
	assert.Equal(t, "backups/objects/4f1c", d.key(OpaqueIdentity("4f1c")))

	d = NewS3Destination(nil, &S3Config{Bucket: "b"})
	assert.Equal(t, "objects/4f1c", d.key(OpaqueIdentity("4f1c")))
}

func TestS3Destination_copySource(t *testing.T) {
	d := &S3Destination{bucket: "my-bucket"}
	assert.Equal(t, "my-bucket/a%20b/c%3F.txt", d.copySource("a b/c?.txt"))
}

func TestS3Destination_minSegmentSize(t *testing.T) {
	d := &S3Destination{}
	assert.Equal(t, 5*1024*1024, d.MinSegmentSize())
}

func TestS3Config_Validate(t *testing.T) {
	valid := S3Config{Bucket: "b", Region: "us-east-1"}
	assert.NoError(t, valid.Validate())

	withEndpoint := S3Config{Bucket: "b", Region: "us-east-1", Endpoint: "http://localhost:9000", AccessKey: "k", SecretKey: "s"}
	assert.NoError(t, withEndpoint.Validate())

	for name, cfg := range map[string]S3Config{
		"no bucket":    {Region: "us-east-1"},
		"no region":    {Bucket: "b"},
		"half keys":    {Bucket: "b", Region: "r", AccessKey: "k"},
		"bad endpoint": {Bucket: "b", Region: "r", Endpoint: "localhost:9000"},
		"no host":      {Bucket: "b", Region: "r", Endpoint: "http://"},
	} {
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestS3ObjectMeta(t *testing.T) {
	lastModified := t0.Add(time.Hour)

	meta := s3ObjectMeta(&s3.HeadObjectOutput{
		ContentLength: aws.Int64(5),
		LastModified:  aws.Time(lastModified),
		ContentType:   aws.String("text/plain"),
		Metadata:      map[string]string{metaMTime: formatTime(t0)},
	})
	assert.Equal(t, int64(5), meta.Size)
	assert.True(t, meta.ModTime.Equal(t0))
	assert.True(t, meta.ChangeTime.Equal(lastModified))
	assert.Equal(t, "text/plain", meta.ContentType)

	meta = s3ObjectMeta(&s3.HeadObjectOutput{LastModified: aws.Time(lastModified)})
	assert.True(t, meta.ModTime.Equal(lastModified), "mtime falls back to LastModified")
}

func TestMergeMetadata(t *testing.T) {
	existing := map[string]string{"a": "1", metaMTime: "x", metaChecksum: "MD5/3/abc"}
	got := mergeMetadata(existing, UserMetadata{"B": {Value: "2"}, "a": {Value: "3"}})

	assert.Equal(t, map[string]string{"a": "3", "b": "2", metaMTime: "x", metaChecksum: "MD5/3/abc"}, got)
	assert.Equal(t, "1", existing["a"], "input must not be modified")
}

func TestStampContent(t *testing.T) {
	ck := &Checksum{Algorithm: ChecksumMD5, Offset: 3, Value: "abc"}
	meta := stampContent(map[string]string{}, ck)
	assert.Equal(t, "MD5/3/abc", meta[metaChecksum])
	assert.False(t, parseTime(meta[metaMTime]).IsZero())

	meta = stampContent(meta, nil)
	assert.NotContains(t, meta, metaChecksum)
}

func TestS3Grants(t *testing.T) {
	grants := s3Grants(&ACL{
		Users: map[string]Permission{
			"bob":   PermissionRead,
			"alice": PermissionFullControl,
			"eve":   PermissionNone,
		},
		Groups: map[string]Permission{
			"other": PermissionRead,
			"staff": PermissionWrite,
		},
	})

	require.Len(t, grants, 3)
	assert.Equal(t, types.TypeCanonicalUser, grants[0].Grantee.Type)
	assert.Equal(t, "alice", aws.ToString(grants[0].Grantee.ID))
	assert.Equal(t, types.PermissionFullControl, grants[0].Permission)
	assert.Equal(t, "bob", aws.ToString(grants[1].Grantee.ID))
	assert.Equal(t, types.PermissionRead, grants[1].Permission)
	assert.Equal(t, types.TypeGroup, grants[2].Grantee.Type)
	assert.Equal(t, allUsersGroupURI, aws.ToString(grants[2].Grantee.URI))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("timeout")))

	notFound := &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusNotFound}},
			Err:      errors.New("not found"),
		},
	}
	assert.True(t, isNotFound(notFound))

	forbidden := &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusForbidden}},
			Err:      errors.New("forbidden"),
		},
	}
	assert.False(t, isNotFound(forbidden))

	d := &S3Destination{}
	assert.ErrorIs(t, d.classify(&smithy.GenericAPIError{Code: "NoSuchKey"}), ErrNotFound)
}
