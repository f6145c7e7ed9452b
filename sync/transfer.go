package sync

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// baseCreate builds the create request shared by every transfer mode.
func baseCreate(obj *SourceObject, id Identity) CreateRequest {
	meta := obj.metadata()
	acl, _ := meta.NativeACL()
	return CreateRequest{
		Identity:     id,
		ContentType:  meta.System().ContentType,
		ACL:          acl,
		UserMetadata: meta.UserMetadata(),
	}
}

// opFor picks the path or object-space variant of an operation name.
func opFor(id Identity, objectOp, pathOp string) string {
	if id.IsPath() {
		return pathOp
	}
	return objectOp
}

// create writes a new object. Directories and objects without content are
// created empty; content is sent whole, or in checksummed segments when a
// checksum algorithm is configured.
func (r *Reconciler) create(ctx context.Context, obj *SourceObject, id Identity) (Identity, error) {
	req := baseCreate(obj, id)

	if id.IsDirectory() || !obj.HasContent() {
		return measure(r.rec, opFor(id, OpCreateObject, OpCreateObjectOnPath), func() (Identity, error) {
			return r.dst.Create(ctx, &req)
		})
	}

	in, err := obj.Content()
	if err != nil {
		return Identity{}, &readError{err}
	}
	defer in.Close()

	if r.cfg.Checksum != "" {
		op := opFor(id, OpCreateObjectFromSegment, OpCreateObjectFromSegmentOnPath)
		return r.writeSegments(ctx, in, req, func(first *CreateRequest) (Identity, error) {
			return measure(r.rec, op, func() (Identity, error) {
				return r.dst.Create(ctx, first)
			})
		})
	}

	slog.Debug("sync", "op", "CREATE", "source", obj.RelativePath, "size", humanize.Bytes(uint64(max(obj.Size, 0))))
	req.Content = sourceReader{in}
	req.Length = obj.Size
	return measure(r.rec, opFor(id, OpCreateObjectFromStream, OpCreateObjectFromStreamOnPath), func() (Identity, error) {
		return r.dst.Create(ctx, &req)
	})
}

// updateContent rewrites the content of an existing object. Checksummed
// objects are immutable on the destination, so they are deleted and
// recreated under the same path; this is not possible for opaque ids.
func (r *Reconciler) updateContent(ctx context.Context, obj *SourceObject, id Identity) error {
	if r.cfg.Checksum != "" && !id.IsPath() {
		return newError(KindValidation, obj, id, ErrChecksumUpdateByID)
	}

	in, err := obj.Content()
	if err != nil {
		return &readError{err}
	}
	defer in.Close()

	slog.Debug("sync", "op", "UPDATE", "source", obj.RelativePath, "target", id)
	base := baseCreate(obj, id)

	if r.cfg.Checksum == "" {
		req := &UpdateRequest{
			Identity:     id,
			Content:      sourceReader{in},
			Length:       obj.Size,
			ContentType:  base.ContentType,
			ACL:          base.ACL,
			UserMetadata: base.UserMetadata,
		}
		return measureErr(r.rec, OpUpdateObjectFromStream, func() error {
			return r.dst.Update(ctx, req)
		})
	}

	deleted := false
	_, err = r.writeSegments(ctx, in, base, func(first *CreateRequest) (Identity, error) {
		if err := measureErr(r.rec, OpDeleteObject, func() error {
			return r.dst.Delete(ctx, id)
		}); err != nil {
			return Identity{}, err
		}
		deleted = true
		return measure(r.rec, OpCreateObjectFromSegmentOnPath, func() (Identity, error) {
			return r.dst.Create(ctx, first)
		})
	})
	if err != nil && deleted {
		var re *readError
		if errors.As(err, &re) {
			err = re.err
		}
		slog.Error("sync", "op", "RECREATE", "target", id, "error", err)
		return &recreateError{err}
	}
	return err
}

// sourceReader marks read failures of a source stream handed to the
// destination, so they classify as source errors.
type sourceReader struct{ r io.Reader }

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		err = &readError{err}
	}
	return n, err
}

// writeSegments streams in as a chain of fixed-size segments carrying a
// running checksum. The first segment goes through first, which returns the
// identity the remaining segments are appended to by byte range. An empty
// stream still produces one (empty) first segment.
func (r *Reconciler) writeSegments(ctx context.Context, in io.Reader, base CreateRequest,
	first func(*CreateRequest) (Identity, error)) (Identity, error) {
	ck, err := NewRunningChecksum(r.cfg.Checksum)
	if err != nil {
		return Identity{}, err
	}

	buf := make([]byte, r.segmentSize)
	var id Identity
	var off int64
	for i := 0; ; i++ {
		n, rerr := io.ReadFull(in, buf)
		if rerr != nil && rerr != io.EOF && rerr != io.ErrUnexpectedEOF {
			return id, &readError{rerr}
		}
		if n == 0 && i > 0 {
			break
		}

		segment := buf[:n]
		ck.Update(segment)
		if i == 0 {
			req := base
			req.Content = bytes.NewReader(segment)
			req.Length = int64(n)
			req.Checksum = ck.Sum()
			if id, err = first(&req); err != nil {
				return id, err
			}
		} else {
			req := &UpdateRequest{
				Identity:     id,
				Content:      bytes.NewReader(segment),
				Length:       int64(n),
				Range:        &Range{Start: off, End: off + int64(n) - 1},
				ContentType:  base.ContentType,
				ACL:          base.ACL,
				UserMetadata: base.UserMetadata,
				Checksum:     ck.Sum(),
			}
			if err := measureErr(r.rec, OpUpdateObjectFromSegment, func() error {
				return r.dst.Update(ctx, req)
			}); err != nil {
				return id, err
			}
		}
		off += int64(n)

		if rerr != nil {
			break
		}
	}

	slog.Debug("sync", "op", "SEGMENTS", "target", id, "size", humanize.Bytes(uint64(off)), "checksum", ck.Sum())
	return id, nil
}
