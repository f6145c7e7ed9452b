package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// User metadata keys maintained by S3Destination.
const (
	metaMTime    = "objsync-mtime"
	metaChecksum = "objsync-checksum"
)

const (
	directoryContentType = "application/x-directory"
	allUsersGroupURI     = "http://acs.amazonaws.com/groups/global/AllUsers"
)

// S3Config holds the connection settings of an S3 destination.
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Endpoint     string `mapstructure:"endpoint"`
	Prefix       string `mapstructure:"prefix"`
	ObjectPrefix string `mapstructure:"object_prefix"`
	StorageClass string `mapstructure:"storage_class"`
}

func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("access_key and secret_key must be set together")
	}
	if c.Endpoint != "" {
		if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
		}
	}
	return nil
}

// S3Destination stores objects in an S3 bucket.
//
// Path identities map to keys under prefix; "/a/" directories become
// zero-byte marker objects. Opaque identities are UUIDs stored under
// prefix+objectPrefix. The content clock is kept in user metadata since S3
// only tracks one LastModified time, which serves as the change clock.
type S3Destination struct {
	client       *s3.Client
	uploader     *manager.Uploader
	bucket       string
	prefix       string
	objectPrefix string
	storageClass types.StorageClass
}

// NewS3Destination creates a new S3Destination.
func NewS3Destination(client *s3.Client, cfg *S3Config) *S3Destination {
	objectPrefix := cfg.ObjectPrefix
	if objectPrefix == "" {
		objectPrefix = "objects/"
	}
	if !strings.HasSuffix(objectPrefix, "/") {
		objectPrefix += "/"
	}
	return &S3Destination{
		client:       client,
		uploader:     manager.NewUploader(client),
		bucket:       cfg.Bucket,
		prefix:       cfg.Prefix,
		objectPrefix: objectPrefix,
		storageClass: types.StorageClass(cfg.StorageClass),
	}
}

// NewS3DestinationFromConfig loads AWS configuration and connects to the
// bucket. Static credentials and a custom endpoint (path-style, e.g. MinIO)
// are used when set.
func NewS3DestinationFromConfig(ctx context.Context, cfg *S3Config) (*S3Destination, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Destination(client, cfg), nil
}

// MinSegmentSize is the smallest non-final multipart part S3 accepts; ranged
// appends copy the existing object as such a part.
func (d *S3Destination) MinSegmentSize() int {
	return int(manager.MinUploadPartSize)
}

func (d *S3Destination) fullKey(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if d.prefix == "" {
		return rel
	}
	return strings.TrimSuffix(d.prefix, "/") + "/" + rel
}

func (d *S3Destination) relKey(full string) string {
	if d.prefix == "" {
		return full
	}
	return strings.TrimPrefix(full, strings.TrimSuffix(d.prefix, "/")+"/")
}

func (d *S3Destination) key(id Identity) string {
	if id.IsPath() {
		return d.fullKey(id.Value)
	}
	return d.fullKey(d.objectPrefix + id.Value)
}

func (d *S3Destination) copySource(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return d.bucket + "/" + strings.Join(parts, "/")
}

func (d *S3Destination) Stat(ctx context.Context, id Identity) (*ObjectMeta, error) {
	out, err := d.head(ctx, d.key(id))
	if err != nil {
		return nil, err
	}
	return s3ObjectMeta(out), nil
}

func (d *S3Destination) SystemMetadata(ctx context.Context, id Identity) (map[string]string, error) {
	out, err := d.head(ctx, d.key(id))
	if err != nil {
		return nil, err
	}
	meta := s3ObjectMeta(out)
	return map[string]string{
		"ctime": formatTime(meta.ChangeTime),
		"mtime": formatTime(meta.ModTime),
		"size":  strconv.FormatInt(meta.Size, 10),
	}, nil
}

func (d *S3Destination) Create(ctx context.Context, req *CreateRequest) (Identity, error) {
	id := req.Identity
	if id.IsZero() {
		id = OpaqueIdentity(uuid.NewString())
	}
	contentType := req.ContentType
	if id.IsDirectory() {
		contentType = directoryContentType
	}

	key := d.key(id)
	meta := stampContent(mergeMetadata(nil, req.UserMetadata), req.Checksum)
	if err := d.put(ctx, key, req.Content, req.Length, contentType, meta); err != nil {
		return Identity{}, err
	}
	if req.ACL != nil {
		if err := d.SetACL(ctx, id, req.ACL); err != nil {
			return id, err
		}
	}
	return id, nil
}

func (d *S3Destination) Update(ctx context.Context, req *UpdateRequest) error {
	key := d.key(req.Identity)
	head, err := d.head(ctx, key)
	if err != nil {
		return err
	}

	meta := stampContent(mergeMetadata(head.Metadata, req.UserMetadata), req.Checksum)
	contentType := req.ContentType
	if contentType == "" {
		contentType = aws.ToString(head.ContentType)
	}

	return d.rewrite(ctx, key, req.ACL, func() error {
		if req.Range == nil {
			return d.put(ctx, key, req.Content, req.Length, contentType, meta)
		}
		return d.appendRange(ctx, key, aws.ToInt64(head.ContentLength), req, contentType, meta)
	})
}

// SetUserMetadata copies the object onto itself with the merged metadata.
func (d *S3Destination) SetUserMetadata(ctx context.Context, id Identity, um UserMetadata) error {
	key := d.key(id)
	head, err := d.head(ctx, key)
	if err != nil {
		return err
	}

	meta := mergeMetadata(head.Metadata, um)
	return d.rewrite(ctx, key, nil, func() error {
		_, err := d.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:            aws.String(d.bucket),
			Key:               aws.String(key),
			CopySource:        aws.String(d.copySource(key)),
			Metadata:          meta,
			MetadataDirective: types.MetadataDirectiveReplace,
			ContentType:       head.ContentType,
			StorageClass:      d.storageClass,
		})
		return err
	})
}

func (d *S3Destination) SetACL(ctx context.Context, id Identity, acl *ACL) error {
	key := d.key(id)
	cur, err := d.client.GetObjectAcl(ctx, &s3.GetObjectAclInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return d.classify(err)
	}
	_, err = d.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
		AccessControlPolicy: &types.AccessControlPolicy{
			Owner:  cur.Owner,
			Grants: s3Grants(acl),
		},
	})
	return err
}

// List returns the path identities stored under root. The object space is
// never listed.
func (d *S3Destination) List(ctx context.Context, root Identity) ([]Identity, error) {
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(d.fullKey(root.Value)),
	})

	var ids []Identity
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if id, ok := d.pathIdentity(aws.ToString(obj.Key)); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// pathIdentity maps a listed key back to its path identity.
func (d *S3Destination) pathIdentity(key string) (Identity, bool) {
	rel := d.relKey(key)
	if strings.HasPrefix(rel, d.objectPrefix) {
		return Identity{}, false
	}
	return PathIdentity("/" + rel), true
}

func (d *S3Destination) Delete(ctx context.Context, id Identity) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(id)),
	})
	return err
}

func (d *S3Destination) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, d.classify(err)
	}
	return out, nil
}

func (d *S3Destination) classify(err error) error {
	if isNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (d *S3Destination) put(ctx context.Context, key string, r io.Reader, size int64, contentType string, meta map[string]string) error {
	if r == nil {
		_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(d.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(nil),
			ContentLength: aws.Int64(0),
			ContentType:   optString(contentType),
			StorageClass:  d.storageClass,
			Metadata:      meta,
		})
		return err
	}

	in := &s3.PutObjectInput{
		Bucket:       aws.String(d.bucket),
		Key:          aws.String(key),
		Body:         r,
		ContentType:  optString(contentType),
		StorageClass: d.storageClass,
		Metadata:     meta,
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	_, err := d.uploader.Upload(ctx, in)
	return err
}

// appendRange writes req.Content at the end of the object. S3 objects cannot
// be modified in place, so the object is rebuilt by a two-part multipart
// upload: the existing bytes copied server-side, then the new segment.
func (d *S3Destination) appendRange(ctx context.Context, key string, size int64, req *UpdateRequest, contentType string, meta map[string]string) error {
	if req.Range.Start != size {
		return fmt.Errorf("append %s at offset %d: object has %d bytes", key, req.Range.Start, size)
	}
	if size == 0 {
		return d.put(ctx, key, req.Content, req.Length, contentType, meta)
	}

	mp, err := d.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:       aws.String(d.bucket),
		Key:          aws.String(key),
		ContentType:  optString(contentType),
		StorageClass: d.storageClass,
		Metadata:     meta,
	})
	if err != nil {
		return err
	}

	completed := false
	defer func() {
		if completed {
			return
		}
		if _, err := d.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(d.bucket),
			Key:      aws.String(key),
			UploadId: mp.UploadId,
		}); err != nil {
			slog.Warn("s3 abort multipart upload", "key", key, "error", err)
		}
	}()

	cp, err := d.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
		Bucket:          aws.String(d.bucket),
		Key:             aws.String(key),
		UploadId:        mp.UploadId,
		PartNumber:      aws.Int32(1),
		CopySource:      aws.String(d.copySource(key)),
		CopySourceRange: aws.String(Range{Start: 0, End: size - 1}.String()),
	})
	if err != nil {
		return err
	}

	part, err := d.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		UploadId:      mp.UploadId,
		PartNumber:    aws.Int32(2),
		Body:          req.Content,
		ContentLength: aws.Int64(req.Length),
	})
	if err != nil {
		return err
	}

	_, err = d.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(d.bucket),
		Key:      aws.String(key),
		UploadId: mp.UploadId,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: []types.CompletedPart{
				{ETag: cp.CopyPartResult.ETag, PartNumber: aws.Int32(1)},
				{ETag: part.ETag, PartNumber: aws.Int32(2)},
			},
		},
	})
	if err != nil {
		return err
	}
	completed = true
	return nil
}

// rewrite runs fn, which replaces the object at key, and then applies acl.
// S3 resets the ACL of rewritten objects, so without a new ACL the previous
// grants are restored.
func (d *S3Destination) rewrite(ctx context.Context, key string, acl *ACL, fn func() error) error {
	var prev *s3.GetObjectAclOutput
	if acl == nil {
		var err error
		prev, err = d.client.GetObjectAcl(ctx, &s3.GetObjectAclInput{
			Bucket: aws.String(d.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return d.classify(err)
		}
	}

	if err := fn(); err != nil {
		return err
	}

	policy := &types.AccessControlPolicy{}
	if acl != nil {
		cur, err := d.client.GetObjectAcl(ctx, &s3.GetObjectAclInput{
			Bucket: aws.String(d.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		policy.Owner = cur.Owner
		policy.Grants = s3Grants(acl)
	} else {
		policy.Owner = prev.Owner
		policy.Grants = prev.Grants
	}
	_, err := d.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket:              aws.String(d.bucket),
		Key:                 aws.String(key),
		AccessControlPolicy: policy,
	})
	return err
}

func s3ObjectMeta(out *s3.HeadObjectOutput) *ObjectMeta {
	changed := aws.ToTime(out.LastModified)
	modified := parseTime(out.Metadata[metaMTime])
	if modified.IsZero() {
		modified = changed
	}
	return &ObjectMeta{
		Size:        aws.ToInt64(out.ContentLength),
		ModTime:     modified,
		ChangeTime:  changed,
		ContentType: aws.ToString(out.ContentType),
		Metadata:    out.Metadata,
	}
}

// mergeMetadata overlays um on the existing S3 metadata.
func mergeMetadata(existing map[string]string, um UserMetadata) map[string]string {
	out := make(map[string]string, len(existing)+len(um))
	maps.Copy(out, existing)
	for k, v := range um {
		out[strings.ToLower(k)] = v.Value
	}
	return out
}

// stampContent records a content write: the content clock and, for
// checksummed writes, the running checksum.
func stampContent(meta map[string]string, ck *Checksum) map[string]string {
	meta[metaMTime] = formatTime(time.Now())
	if ck != nil {
		meta[metaChecksum] = ck.String()
	} else {
		delete(meta, metaChecksum)
	}
	return meta
}

func s3Grants(acl *ACL) []types.Grant {
	var grants []types.Grant
	for _, user := range sortedKeys(acl.Users) {
		perm, ok := s3Permission(acl.Users[user])
		if !ok {
			continue
		}
		grants = append(grants, types.Grant{
			Grantee:    &types.Grantee{Type: types.TypeCanonicalUser, ID: aws.String(user)},
			Permission: perm,
		})
	}
	for _, group := range sortedKeys(acl.Groups) {
		perm, ok := s3Permission(acl.Groups[group])
		if !ok {
			continue
		}
		uri := group
		switch {
		case group == "other":
			uri = allUsersGroupURI
		case !strings.HasPrefix(group, "http"):
			slog.Warn("s3 acl: unsupported group", "group", group)
			continue
		}
		grants = append(grants, types.Grant{
			Grantee:    &types.Grantee{Type: types.TypeGroup, URI: aws.String(uri)},
			Permission: perm,
		})
	}
	return grants
}

func s3Permission(p Permission) (types.Permission, bool) {
	switch p {
	case PermissionRead:
		return types.PermissionRead, true
	case PermissionWrite:
		return types.PermissionWrite, true
	case PermissionFullControl:
		return types.PermissionFullControl, true
	default:
		return "", false
	}
}

func isNotFound(err error) bool {
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
