// Package snapshot dumps the READY chunks of a stream manager to disk in their
// compressed form and reads them back.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gekko3d/voxstream/voxelrt/rt/stream"
	"github.com/gekko3d/voxstream/voxelrt/rt/volume"
	"github.com/klauspost/compress/zstd"
)

const Version = 1

var ErrCorrupt = errors.New("snapshot: corrupt chunk record")

type Header struct {
	Version int       `json:"version"`
	Created time.Time `json:"created"`
	Chunks  int       `json:"chunks"`
}

type ChunkRecord struct {
	CX, CZ int32
	Data   *volume.Compressed
}

type Snapshot struct {
	Header Header
	Chunks []ChunkRecord
}

// Capture collects every READY chunk of m, ordered by coordinate.
// Records share the chunks' compressed data; chunks that were edited since
// loading are compressed into a fresh copy.
func Capture(m *stream.Manager, now time.Time) Snapshot {
	var recs []ChunkRecord
	m.ReadyChunks(func(c stream.Coord, ch *volume.Chunk) {
		data := ch.Compressed()
		if data == nil {
			data = volume.Compress(ch.Blocks())
		}
		recs = append(recs, ChunkRecord{CX: c.X, CZ: c.Z, Data: data})
	})
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CX != recs[j].CX {
			return recs[i].CX < recs[j].CX
		}
		return recs[i].CZ < recs[j].CZ
	})
	return Snapshot{
		Header: Header{Version: Version, Created: now.UTC(), Chunks: len(recs)},
		Chunks: recs,
	}
}

// Chunk rebuilds the chunk in compressed form with occupancy computed.
func (r ChunkRecord) Chunk() (*volume.Chunk, error) {
	if r.Data == nil {
		return nil, fmt.Errorf("%w: chunk (%d,%d) has no data", ErrCorrupt, r.CX, r.CZ)
	}
	if err := r.Data.Validate(); err != nil {
		return nil, fmt.Errorf("%w: chunk (%d,%d): %w", ErrCorrupt, r.CX, r.CZ, err)
	}
	r.Data.Rebuild()
	c := volume.FromCompressed(r.CX, r.CZ, r.Data)
	c.ComputeOccupancy()
	return c, nil
}

// Write stores snap as a JSON header line followed by a gob body, all inside
// one zstd stream.
func Write(path string, snap Snapshot) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func Read(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("snapshot: unsupported version %d", snap.Header.Version)
	}
	return snap, nil
}
