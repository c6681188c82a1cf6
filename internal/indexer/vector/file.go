package vector

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"
)

// File layout, all little-endian:
//
//	header  64 bytes: magic, version, dims, count, createdAt, corpusSize, fingerprint
//	body    count entries of (id uint32, dims x float32)
//	footer  16 bytes: crc32(body), count, body size
const (
	MagicBytes    uint32 = 0x43415658
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 16
)

var ErrCorruptFile = errors.New("corrupt vector index file")

// Meta describes the corpus an index file was built from. Fingerprint
// covers the URLs of the first CorpusSize records, in order.
type Meta struct {
	CorpusSize  int
	Fingerprint uint32
	CreatedAt   time.Time
}

// Fingerprint hashes the ordered URL list an index was built against.
func Fingerprint(urls []string) uint32 {
	h := crc32.NewIEEE()
	for _, u := range urls {
		io.WriteString(h, u)
		h.Write([]byte{'\n'})
	}
	return h.Sum32()
}

// WriteFile writes idx to path atomically via a temp file and rename.
func WriteFile(path string, idx *Index, meta Meta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	defer f.Close()

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(idx.Dims()))
	binary.LittleEndian.PutUint32(header[12:16], uint32(idx.Len()))
	binary.LittleEndian.PutUint64(header[16:24], uint64(meta.CreatedAt.Unix()))
	binary.LittleEndian.PutUint32(header[24:28], uint32(meta.CorpusSize))
	binary.LittleEndian.PutUint32(header[28:32], meta.Fingerprint)

	w := bufio.NewWriter(f)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	crc := crc32.NewIEEE()
	body := io.MultiWriter(w, crc)
	var bodySize uint64
	buf := make([]byte, 4+4*idx.Dims())
	err = idx.each(func(id int, v []float32) error {
		binary.LittleEndian.PutUint32(buf[0:4], uint32(id))
		for i, x := range v {
			binary.LittleEndian.PutUint32(buf[4+4*i:], math.Float32bits(x))
		}
		n, err := body.Write(buf)
		bodySize += uint64(n)
		return err
	})
	if err != nil {
		return fmt.Errorf("writing vectors: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], uint32(idx.Len()))
	binary.LittleEndian.PutUint64(footer[8:16], bodySize)
	if _, err := w.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing index file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing index file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}

// ReadFile loads an index written by WriteFile, verifying the checksum.
func ReadFile(path string) (*Index, Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("reading index file: %w", err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, Meta{}, fmt.Errorf("%w: %s is too short", ErrCorruptFile, path)
	}
	header := data[:HeaderSize]
	if magic := binary.LittleEndian.Uint32(header[0:4]); magic != MagicBytes {
		return nil, Meta{}, fmt.Errorf("%w: bad magic %#x", ErrCorruptFile, magic)
	}
	if version := binary.LittleEndian.Uint32(header[4:8]); version != FormatVersion {
		return nil, Meta{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptFile, version)
	}
	dims := int(binary.LittleEndian.Uint32(header[8:12]))
	count := int(binary.LittleEndian.Uint32(header[12:16]))
	meta := Meta{
		CreatedAt:   time.Unix(int64(binary.LittleEndian.Uint64(header[16:24])), 0).UTC(),
		CorpusSize:  int(binary.LittleEndian.Uint32(header[24:28])),
		Fingerprint: binary.LittleEndian.Uint32(header[28:32]),
	}

	footer := data[len(data)-FooterSize:]
	body := data[HeaderSize : len(data)-FooterSize]
	entrySize := 4 + 4*dims
	if uint64(len(body)) != binary.LittleEndian.Uint64(footer[8:16]) || len(body) != count*entrySize {
		return nil, Meta{}, fmt.Errorf("%w: body size mismatch", ErrCorruptFile)
	}
	if int(binary.LittleEndian.Uint32(footer[4:8])) != count {
		return nil, Meta{}, fmt.Errorf("%w: header and footer counts differ", ErrCorruptFile)
	}
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, Meta{}, fmt.Errorf("%w: checksum mismatch", ErrCorruptFile)
	}

	idx := New(dims)
	idx.ids = make([]int, 0, count)
	idx.vectors = make([][]float32, 0, count)
	for off := 0; off < len(body); off += entrySize {
		id := int(binary.LittleEndian.Uint32(body[off : off+4]))
		v := make([]float32, dims)
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[off+4+4*i:]))
		}
		idx.ids = append(idx.ids, id)
		idx.vectors = append(idx.vectors, v)
	}
	return idx, meta, nil
}
