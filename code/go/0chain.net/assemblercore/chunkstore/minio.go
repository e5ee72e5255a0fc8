package chunkstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/0chain/assembler/code/go/0chain.net/core/logging"
	"github.com/0chain/errors"
	"github.com/minio/minio-go"
	"github.com/minio/sha256-simd"
	"go.uber.org/zap"
)

// MinioOptions connection settings of the object store
type MinioOptions struct {
	StorageURL string
	AccessID   string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	// TempPrefix key prefix of staged chunks
	TempPrefix string
}

// objectClient the slice of the object store api the store needs
type objectClient interface {
	putObject(ctx context.Context, key string, r io.Reader) (int64, error)
	getObject(ctx context.Context, key string) (io.ReadCloser, error)
	listObjects(ctx context.Context, prefix string) ([]minio.ObjectInfo, error)
	removeObject(key string) error
	location(key string) string
}

type minioClient struct {
	mc     *minio.Client
	bucket string
}

func (c *minioClient) putObject(ctx context.Context, key string, r io.Reader) (int64, error) {
	return c.mc.PutObjectWithContext(ctx, c.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
}

func (c *minioClient) getObject(ctx context.Context, key string) (io.ReadCloser, error) {
	return c.mc.GetObjectWithContext(ctx, c.bucket, key, minio.GetObjectOptions{})
}

func (c *minioClient) listObjects(ctx context.Context, prefix string) ([]minio.ObjectInfo, error) {
	doneCh := make(chan struct{})
	defer close(doneCh)

	var objects []minio.ObjectInfo
	for obj := range c.mc.ListObjectsV2(c.bucket, prefix, true, doneCh) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func (c *minioClient) removeObject(key string) error {
	return c.mc.RemoveObject(c.bucket, key)
}

func (c *minioClient) location(key string) string {
	return c.bucket + "/" + key
}

// MinioStore keeps chunks and merged artifacts in a bucket. Objects only become
// visible once their upload completes.
type MinioStore struct {
	client     objectClient
	tempPrefix string
}

func initializeMinio(opts MinioOptions) (*minio.Client, error) {
	mc, err := minio.New(opts.StorageURL, opts.AccessID, opts.SecretKey, opts.UseSSL)
	if err != nil {
		return nil, err
	}

	logging.Logger.Info(fmt.Sprintf("Checking if bucket %s exists", opts.Bucket))
	isExist, err := mc.BucketExists(opts.Bucket)
	switch {
	case isExist:
		logging.Logger.Info("Bucket exists")
	case err != nil:
		return nil, err
	default:
		logging.Logger.Info("Bucket does not exist. Creating bucket")
		if err := mc.MakeBucket(opts.Bucket, opts.Region); err != nil {
			return nil, err
		}
	}

	return mc, nil
}

// SetupMinioStore connects to the object store, creating the bucket when missing.
func SetupMinioStore(opts MinioOptions) (*MinioStore, error) {
	mc, err := initializeMinio(opts)
	if err != nil {
		return nil, errors.Throw(ErrStorageRead, "minio: "+err.Error())
	}
	return newMinioStore(&minioClient{mc: mc, bucket: opts.Bucket}, opts.TempPrefix), nil
}

func newMinioStore(client objectClient, tempPrefix string) *MinioStore {
	if tempPrefix == "" {
		tempPrefix = "temp"
	}
	return &MinioStore{client: client, tempPrefix: strings.Trim(tempPrefix, "/")}
}

func (ms *MinioStore) chunkPrefix(fileID string) string {
	return ms.tempPrefix + "/" + FileKey(fileID) + "/"
}

func (ms *MinioStore) SaveChunk(ctx context.Context, fileID string, order int, r io.Reader) (*ChunkRef, error) {
	key := ms.chunkPrefix(fileID) + ChunkName(order)

	n, err := ms.client.putObject(ctx, key, withContext(ctx, r))
	if err != nil {
		return nil, errors.Throw(ErrStorageWrite, err.Error())
	}

	ref := newChunkRef(ChunkName(order), ms.client.location(key), n, timeNow())
	return &ref, nil
}

func (ms *MinioStore) ListChunks(ctx context.Context, fileID string) ([]ChunkRef, error) {
	prefix := ms.chunkPrefix(fileID)

	objects, err := ms.client.listObjects(ctx, prefix)
	if err != nil {
		return nil, errors.Throw(ErrStorageRead, err.Error())
	}

	refs := make([]ChunkRef, 0, len(objects))
	for _, obj := range objects {
		name := strings.TrimPrefix(obj.Key, prefix)
		if strings.Contains(name, "/") || !IsChunkName(name) {
			continue
		}
		refs = append(refs, newChunkRef(name, ms.client.location(obj.Key), obj.Size, obj.LastModified))
	}
	return refs, nil
}

func (ms *MinioStore) MergeChunks(ctx context.Context, fileID, fileName string, refs []ChunkRef) (*MergeOutput, error) {
	prefix := ms.chunkPrefix(fileID)

	readers := make([]io.Reader, 0, len(refs))
	for _, ref := range refs {
		obj, err := ms.client.getObject(ctx, prefix+ref.Name)
		if err != nil {
			closeAll(readers)
			return nil, errors.Throw(ErrStorageMerge, ref.Name+": "+err.Error())
		}
		readers = append(readers, obj)
	}
	defer closeAll(readers)

	h := sha256.New()
	key := MergedName(fileName)

	n, err := ms.client.putObject(ctx, key, io.TeeReader(io.MultiReader(readers...), h))
	if err != nil {
		return nil, errors.Throw(ErrStorageMerge, err.Error())
	}

	return &MergeOutput{
		Path:   ms.client.location(key),
		Size:   n,
		Digest: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

func closeAll(readers []io.Reader) {
	for _, r := range readers {
		if c, ok := r.(io.Closer); ok {
			c.Close()
		}
	}
}

func (ms *MinioStore) DeleteChunks(ctx context.Context, fileID string, refs []ChunkRef) error {
	prefix := ms.chunkPrefix(fileID)

	var failed []string
	for _, ref := range refs {
		if err := ms.client.removeObject(prefix + ref.Name); err != nil {
			logging.Logger.Warn("delete chunk object",
				zap.String("file_id", fileID),
				zap.String("chunk", ref.Name),
				zap.Error(err))
			failed = append(failed, ref.Name)
		}
	}

	if len(failed) > 0 {
		return errors.Throw(ErrStorageDelete, failed...)
	}
	return nil
}

func (ms *MinioStore) ListAssemblies(ctx context.Context) ([]Assembly, error) {
	objects, err := ms.client.listObjects(ctx, ms.tempPrefix+"/")
	if err != nil {
		return nil, errors.Throw(ErrStorageRead, err.Error())
	}

	byKey := make(map[string]*Assembly)
	var order []string
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Key, ms.tempPrefix+"/")
		dir, name := path.Split(rel)
		dir = strings.TrimSuffix(dir, "/")
		if dir == "" || strings.Contains(dir, "/") {
			continue
		}

		a, ok := byKey[dir]
		if !ok {
			fileID, valid := ParseFileKey(dir)
			if !valid {
				continue
			}
			a = &Assembly{FileID: fileID}
			byKey[dir] = a
			order = append(order, dir)
		}
		if IsChunkName(name) {
			a.Chunks++
		}
		if obj.LastModified.After(a.LastModified) {
			a.LastModified = obj.LastModified
		}
	}

	assemblies := make([]Assembly, 0, len(order))
	for _, k := range order {
		assemblies = append(assemblies, *byKey[k])
	}
	return assemblies, nil
}
