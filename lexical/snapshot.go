package lexical

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/amanshresthaa/quizd/blobstore"
	"github.com/amanshresthaa/quizd/model"
)

const (
	// snapshotMagic identifies quizd lexical snapshots (ASCII: "QZL0").
	snapshotMagic = 0x515A4C30
	// snapshotVersion is the current snapshot format version (v1.0).
	snapshotVersion = 0x00010000
)

type snapshotHeader struct {
	Magic    uint32
	Version  uint32
	BodyLen  uint64
	Checksum uint32
}

// snapshotData is the gob-encoded body of a lexical snapshot.
type snapshotData struct {
	Inverted    map[string][]posting
	DocLengths  map[docNum]int
	ByChunk     map[model.ChunkID]docNum
	NextDoc     docNum
	TotalLength int64
	Live        []byte
}

// ErrIncompatibleSnapshot indicates that a snapshot cannot be restored.
// The restore fails; the index keeps its current state.
type ErrIncompatibleSnapshot struct {
	Reason string
	cause  error
}

func (e *ErrIncompatibleSnapshot) Error() string {
	return fmt.Sprintf("incompatible snapshot: %s", e.Reason)
}

func (e *ErrIncompatibleSnapshot) Unwrap() error { return e.cause }

// WriteSnapshot serializes the postings to w under a read lock held
// only for the in-memory encode, not the full write.
func (idx *Index) WriteSnapshot(w io.Writer) error {
	idx.mu.RLock()
	liveBytes, err := idx.live.MarshalBinary()
	if err != nil {
		idx.mu.RUnlock()
		return fmt.Errorf("snapshot: %w", err)
	}
	data := snapshotData{
		Inverted:    idx.inverted,
		DocLengths:  idx.docLengths,
		ByChunk:     idx.byChunk,
		NextDoc:     idx.nextDoc,
		TotalLength: idx.totalLength,
		Live:        liveBytes,
	}

	var body bytes.Buffer
	enc, err := zstd.NewWriter(&body)
	if err != nil {
		idx.mu.RUnlock()
		return fmt.Errorf("snapshot: %w", err)
	}
	encodeErr := gob.NewEncoder(enc).Encode(&data)
	idx.mu.RUnlock()

	if encodeErr != nil {
		return fmt.Errorf("snapshot: %w", encodeErr)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	header := snapshotHeader{
		Magic:    snapshotMagic,
		Version:  snapshotVersion,
		BodyLen:  uint64(body.Len()),
		Checksum: crc32.ChecksumIEEE(body.Bytes()),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	_, err = w.Write(body.Bytes())
	return err
}

// ReadSnapshot restores the index from a snapshot previously written by
// WriteSnapshot. On any error the index keeps its current state.
func (idx *Index) ReadSnapshot(r io.Reader) error {
	var header snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return &ErrIncompatibleSnapshot{Reason: "truncated header", cause: err}
	}
	if header.Magic != snapshotMagic {
		return &ErrIncompatibleSnapshot{Reason: fmt.Sprintf("bad magic 0x%08x", header.Magic)}
	}
	if header.Version != snapshotVersion {
		return &ErrIncompatibleSnapshot{Reason: fmt.Sprintf("unsupported version 0x%08x", header.Version)}
	}

	body := make([]byte, header.BodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return &ErrIncompatibleSnapshot{Reason: "truncated body", cause: err}
	}
	if crc32.ChecksumIEEE(body) != header.Checksum {
		return &ErrIncompatibleSnapshot{Reason: "checksum mismatch"}
	}

	dec, err := zstd.NewReader(bytes.NewReader(body))
	if err != nil {
		return &ErrIncompatibleSnapshot{Reason: "corrupt compression stream", cause: err}
	}
	defer dec.Close()

	var data snapshotData
	if err := gob.NewDecoder(dec).Decode(&data); err != nil {
		return &ErrIncompatibleSnapshot{Reason: "corrupt body", cause: err}
	}

	live := roaring.New()
	if err := live.UnmarshalBinary(data.Live); err != nil {
		return &ErrIncompatibleSnapshot{Reason: "corrupt live bitmap", cause: err}
	}

	byDoc := make(map[docNum]model.ChunkID, len(data.ByChunk))
	for id, doc := range data.ByChunk {
		byDoc[doc] = id
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.inverted = data.Inverted
	idx.docLengths = data.DocLengths
	idx.byChunk = data.ByChunk
	idx.byDoc = byDoc
	idx.nextDoc = data.NextDoc
	idx.totalLength = data.TotalLength
	idx.live = live
	// Aggregates are rebuilt on the first search.
	idx.dirty = true

	return nil
}

// SaveSnapshot writes a snapshot blob to the given store.
func (idx *Index) SaveSnapshot(ctx context.Context, store blobstore.Store, name string) error {
	var buf bytes.Buffer
	if err := idx.WriteSnapshot(&buf); err != nil {
		return err
	}
	return store.Put(ctx, name, buf.Bytes())
}

// LoadSnapshot restores the index from a snapshot blob in the given store.
func (idx *Index) LoadSnapshot(ctx context.Context, store blobstore.Store, name string) error {
	data, err := store.Get(ctx, name)
	if err != nil {
		return err
	}
	return idx.ReadSnapshot(bytes.NewReader(data))
}
