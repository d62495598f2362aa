package embedding

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"slices"

	"github.com/klauspost/compress/zstd"

	"github.com/amanshresthaa/quizd/blobstore"
	"github.com/amanshresthaa/quizd/model"
)

const (
	// snapshotMagic identifies quizd embedding snapshots (ASCII: "QZE0").
	snapshotMagic = 0x515A4530
	// snapshotVersion is the current snapshot format version (v1.0).
	snapshotVersion = 0x00010000
)

// snapshotHeader is the fixed-size header at the start of every snapshot.
type snapshotHeader struct {
	Magic     uint32
	Version   uint32
	Dimension uint32
	Count     uint64
	// BodyLen is the length of the zstd-compressed record section.
	BodyLen uint64
	// Checksum is the CRC32 (IEEE) of the compressed record section.
	Checksum uint32
}

// WriteSnapshot serializes the full vector set to w. The snapshot is a
// consistent point-in-time copy: it captures the current state pointer
// and concurrent upserts are not blocked for the duration of the write.
func (idx *Index) WriteSnapshot(w io.Writer) error {
	state := idx.state.Load()

	var body bytes.Buffer
	enc, err := zstd.NewWriter(&body)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	ids := make([]model.ChunkID, 0, len(state.vectors))
	for id := range state.vectors {
		ids = append(ids, id)
	}
	// Stable record order keeps snapshots byte-comparable.
	slices.Sort(ids)

	buf := make([]byte, 4)
	for _, id := range ids {
		vec := state.vectors[id]

		binary.LittleEndian.PutUint32(buf, uint32(len(id)))
		if _, err := enc.Write(buf); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		if _, err := enc.Write([]byte(id)); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := enc.Write(buf); err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	header := snapshotHeader{
		Magic:     snapshotMagic,
		Version:   snapshotVersion,
		Dimension: uint32(idx.opts.Dimension),
		Count:     uint64(len(ids)),
		BodyLen:   uint64(body.Len()),
		Checksum:  crc32.ChecksumIEEE(body.Bytes()),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	_, err = w.Write(body.Bytes())
	return err
}

// ReadSnapshot restores the index from a snapshot previously written by
// WriteSnapshot. The restore is all-or-nothing: on any error the index
// keeps its current state. A snapshot whose dimensionality differs from
// the index configuration fails fast with ErrIncompatibleSnapshot.
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
	if int(header.Dimension) != idx.opts.Dimension {
		return &ErrIncompatibleSnapshot{
			Reason: fmt.Sprintf("dimension %d does not match configured %d", header.Dimension, idx.opts.Dimension),
		}
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

	vectors := make(map[model.ChunkID][]float32, header.Count)
	buf := make([]byte, 4)
	for i := uint64(0); i < header.Count; i++ {
		if _, err := io.ReadFull(dec, buf); err != nil {
			return &ErrIncompatibleSnapshot{Reason: "truncated record", cause: err}
		}
		idLen := binary.LittleEndian.Uint32(buf)

		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(dec, idBytes); err != nil {
			return &ErrIncompatibleSnapshot{Reason: "truncated record", cause: err}
		}

		vec := make([]float32, header.Dimension)
		for j := range vec {
			if _, err := io.ReadFull(dec, buf); err != nil {
				return &ErrIncompatibleSnapshot{Reason: "truncated record", cause: err}
			}
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
		}

		vectors[model.ChunkID(idBytes)] = vec
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	idx.state.Store(&indexState{vectors: vectors})

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
