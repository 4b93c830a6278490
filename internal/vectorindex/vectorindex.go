// Package vectorindex is a supplementary store alongside the relational
// Session Store: it upserts each embedded item's description/image vectors
// into Qdrant so a future similarity lookup has an index to query. It is
// storage only — no clustering or search is implemented (non-goal).
package vectorindex

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/google/uuid"
)

// Names of the two named vectors carried by every point. A record with a
// description but no usable image (ImageEmbedding nil) simply omits the
// image vector from that point rather than writing a zero vector.
const (
	descriptionVectorName = "description"
	imageVectorName       = "image"
)

// Index is the sole owner of the Qdrant connection used by the pipeline's
// storage stage.
type Index struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New dials Qdrant at addr and targets collection.
func New(addr, collection string) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vectorindex: dial qdrant %s: %w", addr, err)
	}
	return &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (idx *Index) Close() error { return idx.conn.Close() }

// EnsureCollection creates the collection if it doesn't exist, sized for
// dims-wide vectors.
func (idx *Index) EnsureCollection(ctx context.Context, dims int) error {
	list, err := idx.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("vectorindex: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == idx.collection {
			return nil
		}
	}

	vectorParams := &pb.VectorParams{
		Size:     uint64(dims),
		Distance: pb.Distance_Cosine,
	}
	_, err = idx.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: idx.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_ParamsMap{
				ParamsMap: &pb.VectorParamsMap{
					Map: map[string]*pb.VectorParams{
						descriptionVectorName: vectorParams,
						imageVectorName:       vectorParams,
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorindex: create collection %s: %w", idx.collection, err)
	}
	return nil
}

// Record is one embedded item's vector pair and lookup tags.
type Record struct {
	GalleryID            string
	SessionID            int64
	Marketplace          string
	ItemID               string
	DescriptionEmbedding []float32
	ImageEmbedding       []float32
}

// UpsertVectors stores each record's (description_embedding,
// image_embedding) pair as one point carrying two named vectors, tagged
// with enough payload to trace back to its session/item row. A record
// whose ImageEmbedding is empty (no usable image was selected upstream)
// still gets its description vector written; only the image vector is
// omitted from that point.
func (idx *Index) UpsertVectors(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := buildPoints(records)

	wait := true
	_, err := idx.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: idx.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert %d points: %w", len(records), err)
	}
	return nil
}

// pointID deterministically derives a point's UUID from its identifying
// tags, so upserting the same record again (same gallery, session,
// marketplace and item) overwrites its point rather than duplicating it.
// The session id is one of the tags, so a later run's session writes a
// new point for the same item.
func pointID(r Record) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s:%d:%s:%s", r.GalleryID, r.SessionID, r.Marketplace, r.ItemID))).String()
}

// buildPoints converts records into Qdrant point structs, each carrying a
// description vector and, when present, an image vector.
func buildPoints(records []Record) []*pb.PointStruct {
	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		named := map[string]*pb.Vector{
			descriptionVectorName: {Data: r.DescriptionEmbedding},
		}
		if len(r.ImageEmbedding) > 0 {
			named[imageVectorName] = &pb.Vector{Data: r.ImageEmbedding}
		}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(r)}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vectors{Vectors: &pb.NamedVectors{Vectors: named}},
			},
			Payload: map[string]*pb.Value{
				"gallery_id":  {Kind: &pb.Value_StringValue{StringValue: r.GalleryID}},
				"session_id":  {Kind: &pb.Value_IntegerValue{IntegerValue: r.SessionID}},
				"marketplace": {Kind: &pb.Value_StringValue{StringValue: r.Marketplace}},
				"item_id":     {Kind: &pb.Value_StringValue{StringValue: r.ItemID}},
			},
		}
	}
	return points
}
