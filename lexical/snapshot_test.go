package lexical

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanshresthaa/quizd/blobstore"
	"github.com/amanshresthaa/quizd/model"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Add("1", "coronary perfusion during diastole"))
	require.NoError(t, idx.Add("2", "ventricular ejection during systole"))
	require.NoError(t, idx.Remove("2"))
	require.NoError(t, idx.Add("3", "diastole and filling pressure"))

	want, err := idx.Search("diastole perfusion", 10)
	require.NoError(t, err)
	require.NotEmpty(t, want)

	var buf bytes.Buffer
	require.NoError(t, idx.WriteSnapshot(&buf))

	restored := New()
	require.NoError(t, restored.ReadSnapshot(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, idx.Len(), restored.Len())

	got, err := restored.Search("diastole perfusion", 10)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSnapshot_Corrupt(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Add("1", "alpha beta"))

	var buf bytes.Buffer
	require.NoError(t, idx.WriteSnapshot(&buf))

	var incompatible *ErrIncompatibleSnapshot

	t.Run("BadMagic", func(t *testing.T) {
		data := bytes.Clone(buf.Bytes())
		data[0] ^= 0xFF
		err := New().ReadSnapshot(bytes.NewReader(data))
		require.ErrorAs(t, err, &incompatible)
	})

	t.Run("FlippedBodyByte", func(t *testing.T) {
		data := bytes.Clone(buf.Bytes())
		data[len(data)-1] ^= 0xFF
		err := New().ReadSnapshot(bytes.NewReader(data))
		require.ErrorAs(t, err, &incompatible)
		assert.Contains(t, err.Error(), "checksum")
	})

	t.Run("Truncated", func(t *testing.T) {
		err := New().ReadSnapshot(bytes.NewReader(buf.Bytes()[:6]))
		require.ErrorAs(t, err, &incompatible)
	})
}

func TestSnapshot_RestoreKeepsStateOnError(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Add("keep", "existing content"))

	err := idx.ReadSnapshot(bytes.NewReader([]byte("garbage")))
	var incompatible *ErrIncompatibleSnapshot
	require.ErrorAs(t, err, &incompatible)

	hits, err := idx.Search("existing", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, model.ChunkID("keep"), hits[0].ChunkID)
}

func TestSnapshot_BlobStore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	idx := New()
	require.NoError(t, idx.Add("1", "alpha beta gamma"))
	require.NoError(t, idx.SaveSnapshot(ctx, store, "lexical/v1.snap"))

	restored := New()
	require.NoError(t, restored.LoadSnapshot(ctx, store, "lexical/v1.snap"))
	assert.Equal(t, 1, restored.Len())

	err := restored.LoadSnapshot(ctx, store, "missing.snap")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
