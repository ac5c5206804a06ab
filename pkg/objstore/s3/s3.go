// Package s3 implements an S3-backed object store.
//
// Every object facet is mapped onto S3 keys under the container prefix:
//
//	<prefix><container>/meta/<objectID>      ObjectAttr (JSON)
//	<prefix><container>/data/<objectID>      payload bytes
//	<prefix><container>/kv/<objectID>/<key>  keyspace values
//
// S3 has no random-access writes, so ReadAt uses ranged GETs while WriteAt
// and PunchRange are read-modify-write (download, patch, re-upload). That
// makes this backend best suited for read-heavy namespaces and coarse
// writes; write-heavy workloads should prefer the Badger backend.
//
// Thread Safety:
// Safe for concurrent use. Concurrent writers of the same object payload
// resolve last-write-wins, per S3 semantics.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/marmos91/objfs/internal/logger"
	"github.com/marmos91/objfs/pkg/objstore"
)

// S3Store implements objstore.Store on top of Amazon S3 or any S3-compatible
// service (MinIO, Localstack, Cubbit DS3).
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	conn   objstore.Connection
}

// Config contains the settings for the S3 backend.
type Config struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	KeyPrefix string
}

// NewS3Store creates an S3-backed object store and verifies bucket access.
func NewS3Store(ctx context.Context, conn objstore.Connection, cfg Config) (*S3Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	store := &S3Store{
		client: cfg.Client,
		bucket: cfg.Bucket,
		prefix: cfg.KeyPrefix,
		conn:   conn,
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	logger.Info("S3 object store initialized: bucket=%s prefix=%s container=%s",
		cfg.Bucket, cfg.KeyPrefix, conn.Container)

	return store, nil
}

// Connection returns the pool/container pair this store is attached to.
func (s *S3Store) Connection() objstore.Connection {
	return s.conn
}

func (s *S3Store) metaKey(id objstore.ObjectID) string {
	return s.prefix + s.conn.Container + "/meta/" + id.String()
}

func (s *S3Store) dataKey(id objstore.ObjectID) string {
	return s.prefix + s.conn.Container + "/data/" + id.String()
}

func (s *S3Store) kvKey(id objstore.ObjectID, key string) string {
	return s.prefix + s.conn.Container + "/kv/" + id.String() + "/" + key
}

func (s *S3Store) kvPrefix(id objstore.ObjectID) string {
	return s.prefix + s.conn.Container + "/kv/" + id.String() + "/"
}

// isNoSuchKey reports whether err is an S3 missing-key response.
func isNoSuchKey(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

// getJSON downloads and decodes a JSON object; found=false on missing key.
func (s *S3Store) getJSON(ctx context.Context, key string, out any) (bool, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNoSuchKey(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// putBytes uploads data under key.
func (s *S3Store) putBytes(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// getAttr fetches the attribute record, mapping a miss to ErrObjectNotFound.
func (s *S3Store) getAttr(ctx context.Context, id objstore.ObjectID) (*objstore.ObjectAttr, error) {
	var attr objstore.ObjectAttr
	found, err := s.getJSON(ctx, s.metaKey(id), &attr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, objstore.ErrObjectNotFound
	}
	return &attr, nil
}

// putAttr uploads the attribute record.
func (s *S3Store) putAttr(ctx context.Context, id objstore.ObjectID, attr *objstore.ObjectAttr) error {
	encoded, err := json.Marshal(attr)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	return s.putBytes(ctx, s.metaKey(id), encoded)
}

// downloadPayload fetches the whole payload; a missing data object is an
// empty payload.
func (s *S3Store) downloadPayload(ctx context.Context, id objstore.ObjectID) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.dataKey(id)),
	})
	if isNoSuchKey(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payload: %w", err)
	}
	defer result.Body.Close()
	return io.ReadAll(result.Body)
}

// uploadPayload stores the payload and refreshes the derived size fields.
func (s *S3Store) uploadPayload(ctx context.Context, id objstore.ObjectID, payload []byte) error {
	attr, err := s.getAttr(ctx, id)
	if err != nil {
		return err
	}
	if err := s.putBytes(ctx, s.dataKey(id), payload); err != nil {
		return err
	}
	attr.Size = uint64(len(payload))
	attr.BlockCount = (attr.Size + 511) / 512
	return s.putAttr(ctx, id, attr)
}

// CreateObject allocates a new object with a random identity.
func (s *S3Store) CreateObject(
	ctx context.Context,
	class objstore.ObjectClass,
	chunkSize uint64,
) (objstore.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return objstore.NilObjectID, err
	}

	id := uuid.New()
	attr := &objstore.ObjectAttr{Class: class, ChunkSize: chunkSize}
	if err := s.putAttr(ctx, id, attr); err != nil {
		return objstore.NilObjectID, err
	}
	return id, nil
}

// OpenObject verifies the object exists.
func (s *S3Store) OpenObject(ctx context.Context, id objstore.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.getAttr(ctx, id)
	return err
}

// CloseObject is a no-op for S3; opens are not tracked.
func (s *S3Store) CloseObject(ctx context.Context, id objstore.ObjectID) error {
	return ctx.Err()
}

// DeleteObject removes the attribute record, payload, and keyspace entries.
func (s *S3Store) DeleteObject(ctx context.Context, id objstore.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.getAttr(ctx, id); err != nil {
		return err
	}

	keys, err := s.ListKeys(ctx, id, "")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.deleteKey(ctx, s.kvKey(id, key)); err != nil {
			return err
		}
	}
	if err := s.deleteKey(ctx, s.dataKey(id)); err != nil {
		return err
	}
	return s.deleteKey(ctx, s.metaKey(id))
}

// deleteKey removes a single S3 object; S3 deletes are idempotent.
func (s *S3Store) deleteKey(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// ReadAt reads payload bytes at offset with a ranged GET.
func (s *S3Store) ReadAt(
	ctx context.Context,
	id objstore.ObjectID,
	offset uint64,
	buf []byte,
) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	attr, err := s.getAttr(ctx, id)
	if err != nil {
		return 0, err
	}
	if offset >= attr.Size || len(buf) == 0 {
		return 0, nil
	}

	end := offset + uint64(len(buf))
	if end > attr.Size {
		end = attr.Size
	}
	rangeStr := fmt.Sprintf("bytes=%d-%d", offset, end-1)

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.dataKey(id)),
		Range:  aws.String(rangeStr),
	})
	if isNoSuchKey(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read payload range: %w", err)
	}
	defer result.Body.Close()

	n, err := io.ReadFull(result.Body, buf[:end-offset])
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return n, err
}

// WriteAt patches the payload at offset via read-modify-write.
func (s *S3Store) WriteAt(
	ctx context.Context,
	id objstore.ObjectID,
	offset uint64,
	data []byte,
) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if _, err := s.getAttr(ctx, id); err != nil {
		return 0, err
	}

	payload, err := s.downloadPayload(ctx, id)
	if err != nil {
		return 0, err
	}

	end := offset + uint64(len(data))
	if end > uint64(len(payload)) {
		grown := make([]byte, end)
		copy(grown, payload)
		payload = grown
	}
	copy(payload[offset:end], data)

	if err := s.uploadPayload(ctx, id, payload); err != nil {
		return 0, err
	}
	return len(data), nil
}

// PunchRange deallocates [offset, offset+length) via read-modify-write,
// following the interface contract for PunchToEnd and offsets past the end.
func (s *S3Store) PunchRange(
	ctx context.Context,
	id objstore.ObjectID,
	offset, length uint64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.getAttr(ctx, id); err != nil {
		return err
	}

	payload, err := s.downloadPayload(ctx, id)
	if err != nil {
		return err
	}

	size := uint64(len(payload))
	switch {
	case offset > size:
		grown := make([]byte, offset)
		copy(grown, payload)
		payload = grown
	// offset <= size below, so size-offset cannot wrap.
	case length == objstore.PunchToEnd || length >= size-offset:
		payload = payload[:offset]
	default:
		zero := make([]byte, length)
		copy(payload[offset:offset+length], zero)
	}
	return s.uploadPayload(ctx, id, payload)
}

// GetAttr returns the object's store-level attributes.
func (s *S3Store) GetAttr(ctx context.Context, id objstore.ObjectID) (*objstore.ObjectAttr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.getAttr(ctx, id)
}

// SetAttr updates the class and chunk-size hints.
func (s *S3Store) SetAttr(ctx context.Context, id objstore.ObjectID, attr *objstore.ObjectAttr) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	current, err := s.getAttr(ctx, id)
	if err != nil {
		return err
	}
	current.Class = attr.Class
	current.ChunkSize = attr.ChunkSize
	return s.putAttr(ctx, id, current)
}

// ListKeys lists the object's keyspace with a paginated prefix scan.
func (s *S3Store) ListKeys(ctx context.Context, id objstore.ObjectID, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := s.getAttr(ctx, id); err != nil {
		return nil, err
	}

	scanPrefix := s.kvPrefix(id) + prefix
	base := len(s.kvPrefix(id))

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(scanPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list keys: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, (*obj.Key)[base:])
		}
	}
	return keys, nil
}

// GetValue downloads the value stored under key.
func (s *S3Store) GetValue(ctx context.Context, id objstore.ObjectID, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := s.getAttr(ctx, id); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.kvKey(id, key)),
	})
	if isNoSuchKey(err) {
		return nil, objstore.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get value: %w", err)
	}
	defer result.Body.Close()
	return io.ReadAll(result.Body)
}

// PutValue uploads value under key.
func (s *S3Store) PutValue(ctx context.Context, id objstore.ObjectID, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.getAttr(ctx, id); err != nil {
		return err
	}
	return s.putBytes(ctx, s.kvKey(id, key), value)
}

// DeleteKey removes key from the object's keyspace.
func (s *S3Store) DeleteKey(ctx context.Context, id objstore.ObjectID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.getAttr(ctx, id); err != nil {
		return err
	}

	// S3 deletes are idempotent, but the interface wants a miss reported.
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.kvKey(id, key)),
	})
	if isNoSuchKey(err) {
		return objstore.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check value: %w", err)
	}
	return s.deleteKey(ctx, s.kvKey(id, key))
}

// Healthcheck verifies bucket access.
func (s *S3Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("bucket %q not accessible: %w", s.bucket, err)
	}
	return nil
}

// Close releases nothing; the S3 client is managed by the caller.
func (s *S3Store) Close() error {
	return nil
}
