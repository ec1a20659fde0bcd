package mongo

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ejjahanieklu/ehn/internal/docstore"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		raw     string
		want    Mode
		wantErr bool
	}{
		{raw: "", want: ModeSession},
		{raw: "session", want: ModeSession},
		{raw: " Per-Call ", want: ModePerCall},
		{raw: "pooled", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseMode(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_RequiresURI(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

func TestOpen_RejectsUnknownMode(t *testing.T) {
	_, err := Open(context.Background(), Config{URI: "mongodb://localhost:27017", Mode: "sharded"})
	assert.Error(t, err)
}

func TestOpen_PerCallDoesNotDial(t *testing.T) {
	g, err := Open(context.Background(), Config{URI: "mongodb://127.0.0.1:1", Mode: ModePerCall})
	require.NoError(t, err)
	assert.Equal(t, ModePerCall, g.Mode())
	assert.Equal(t, docstore.DefaultDatabase, g.cfg.Database)
	assert.NoError(t, g.Close(context.Background()))
}

func TestGateway_CloseDuringOperations(t *testing.T) {
	g := &Gateway{
		cfg: Config{
			URI:                    "mongodb://127.0.0.1:1",
			Database:               docstore.DefaultDatabase,
			Mode:                   ModeSession,
			ServerSelectionTimeout: 50 * time.Millisecond,
			MaxPoolSize:            defaultMaxPoolSize,
		},
		logger: log.WithField("component", "mongo-gateway"),
	}
	client, err := g.connect(context.Background())
	require.NoError(t, err)
	g.client.Store(client)

	noop := func(context.Context, docstore.Database) error { return nil }

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				_ = g.Ping(context.Background())
				_ = g.WithConnection(context.Background(), noop)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = g.Close(context.Background())
	}()
	wg.Wait()

	assert.ErrorIs(t, g.WithConnection(context.Background(), noop), errGatewayClosed)
	assert.ErrorIs(t, g.Ping(context.Background()), errGatewayClosed)
	assert.NoError(t, g.Close(context.Background()))
}

func TestNormalizeDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	raw := bson.M{
		"_id":   oid,
		"count": int32(3),
		"from":  bson.M{"name": "Pho 24", "tags": bson.A{"soup", bson.D{{Key: "k", Value: "v"}}}},
		"plain": "x",
	}

	doc := normalizeDocument(raw)

	assert.Equal(t, oid.Hex(), doc.ID())
	assert.Equal(t, int64(3), doc["count"])
	from, ok := doc["from"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Pho 24", from["name"])
	tags, ok := from["tags"].([]any)
	require.True(t, ok)
	assert.Equal(t, "soup", tags[0])
	assert.Equal(t, map[string]any{"k": "v"}, tags[1])
	assert.Equal(t, "x", doc["plain"])
}

func TestGateway_MongoDocumentLifecycle(t *testing.T) {
	uri := strings.TrimSpace(os.Getenv("EHN_MONGO_TEST_URI"))
	if uri == "" {
		t.Skip("EHN_MONGO_TEST_URI is not set")
	}

	for _, mode := range []Mode{ModeSession, ModePerCall} {
		t.Run(string(mode), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			g, err := Open(ctx, Config{URI: uri, Database: "ehn_test_" + strings.ReplaceAll(string(mode), "-", "_"), Mode: mode})
			require.NoError(t, err)
			t.Cleanup(func() { _ = g.Close(context.Background()) })
			require.NoError(t, g.Ping(ctx))

			err = g.WithConnection(ctx, func(ctx context.Context, db docstore.Database) error {
				items := db.Collection(docstore.CollectionItems)
				if _, err := items.DeleteMany(ctx, docstore.Filter{}); err != nil {
					return err
				}
				require.NoError(t, items.EnsureIndex(ctx, "_order"))

				id, err := items.InsertOne(ctx, docstore.Document{"name": "pho", "_order": "o1", "paid": false})
				require.NoError(t, err)
				require.NotEmpty(t, id)

				res, err := items.UpsertByID(ctx, id, docstore.Document{"name": "pho", "_order": "o1", "paid": true})
				require.NoError(t, err)
				assert.False(t, res.Inserted)

				res, err = items.UpsertByID(ctx, "fresh", docstore.Document{"name": "udon", "_order": "o1"})
				require.NoError(t, err)
				assert.True(t, res.Inserted)

				docs, err := items.Find(ctx, docstore.Filter{"_order": "o1"})
				require.NoError(t, err)
				assert.Len(t, docs, 2)

				doc, err := items.FindOne(ctx, docstore.ByID(id))
				require.NoError(t, err)
				assert.Equal(t, true, doc["paid"])

				_, err = items.FindOne(ctx, docstore.ByID("missing"))
				assert.True(t, errors.Is(err, docstore.ErrNoDocuments))

				n, err := items.DeleteMany(ctx, docstore.Filter{"_order": "o1"})
				require.NoError(t, err)
				assert.EqualValues(t, 2, n)
				return nil
			})
			require.NoError(t, err)
		})
	}
}
