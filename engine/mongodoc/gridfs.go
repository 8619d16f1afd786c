package mongodoc

import (
	"context"
	"fmt"
	"io"

	"github.com/dolmen-go/contextio"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roach88/dbstore/engine"
)

// metadataID is the metadata key holding the blob id.
const metadataID = "ID"

type gridFile struct {
	ID       any    `bson:"_id"`
	Metadata bson.M `bson:"metadata"`
}

func (d *database) bucket(name string) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(d.db, options.GridFSBucket().SetName(name).SetChunkSizeBytes(d.opts.chunkSize))
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", name, err)
	}
	return b, nil
}

// blobFilter matches files saved under id, or uploaded with id as filename.
func blobFilter(id string) bson.D {
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "metadata." + metadataID, Value: id}},
		bson.D{{Key: "filename", Value: id}},
	}}}
}

func files(ctx context.Context, b *gridfs.Bucket, id string, fopts ...*options.GridFSFindOptions) ([]gridFile, error) {
	cur, err := b.Find(blobFilter(id), fopts...)
	if err != nil {
		return nil, err
	}
	var out []gridFile
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PutBlob uploads r as a new GridFS file named id and then deletes older
// files with that id. GridFS operations are not part of the session's
// transaction.
func (d *database) PutBlob(ctx context.Context, s engine.Session, bucket, id string, r io.Reader, metadata map[string]any) error {
	if s != nil && s.ReadOnly() {
		return fmt.Errorf("put blob %s/%s in read-only session: %w", bucket, id, engine.ErrReadOnly)
	}
	b, err := d.bucket(bucket)
	if err != nil {
		return err
	}

	old, err := files(ctx, b, id)
	if err != nil {
		return fmt.Errorf("look up blob %s/%s: %w", bucket, id, err)
	}

	md := bson.M{}
	for k, v := range metadata {
		bv, err := bsonValue(v)
		if err != nil {
			return fmt.Errorf("encode metadata of blob %s/%s: %w", bucket, id, err)
		}
		md[k] = bv
	}
	md[metadataID] = id

	if _, err := b.UploadFromStream(id, contextio.NewReader(ctx, r), options.GridFSUpload().SetMetadata(md)); err != nil {
		return fmt.Errorf("upload blob %s/%s: %w", bucket, id, err)
	}

	for _, f := range old {
		if err := b.Delete(f.ID); err != nil {
			return fmt.Errorf("delete previous blob %s/%s: %w", bucket, id, err)
		}
	}
	return nil
}

// GetBlob downloads the newest file saved under id.
func (d *database) GetBlob(ctx context.Context, s engine.Session, bucket, id string, w io.Writer) (map[string]any, bool, error) {
	b, err := d.bucket(bucket)
	if err != nil {
		return nil, false, err
	}

	found, err := files(ctx, b, id, options.GridFSFind().SetSort(bson.D{{Key: "uploadDate", Value: -1}}).SetLimit(1))
	if err != nil {
		return nil, false, fmt.Errorf("look up blob %s/%s: %w", bucket, id, err)
	}
	if len(found) == 0 {
		return nil, false, nil
	}
	f := found[0]

	if _, err := b.DownloadToStream(f.ID, contextio.NewWriter(ctx, w)); err != nil {
		return nil, false, fmt.Errorf("download blob %s/%s: %w", bucket, id, err)
	}

	metadata := map[string]any{}
	for k, v := range f.Metadata {
		if k != metadataID {
			metadata[k] = plain(v)
		}
	}
	return metadata, true, nil
}
