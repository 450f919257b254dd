package shape

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// shapefileCode is the magic number in the first four bytes of .shp and
// .shx headers.
const shapefileCode = 9994

const headerLen = 100

// The index-restore flag mirrors the decoder-level rebuild switch of the
// legacy toolchain. It is package-global mutable state: leaving it enabled
// would silently rewrite the index of every file opened afterwards, so it
// is only ever toggled through withRestoreIndex.
var (
	restoreMu    sync.Mutex
	restoreIndex bool
)

// SetRestoreIndex sets the global index-rebuild flag and returns the prior
// value. Callers inside this package use withRestoreIndex instead.
func SetRestoreIndex(v bool) bool {
	restoreMu.Lock()
	defer restoreMu.Unlock()
	prev := restoreIndex
	restoreIndex = v
	return prev
}

// withRestoreIndex runs fn with the rebuild flag enabled and restores the
// prior value on every exit path, including errors.
func withRestoreIndex(fn func() error) error {
	prev := SetRestoreIndex(true)
	defer SetRestoreIndex(prev)
	return fn()
}

// restoreEnabled reports the current flag value.
func restoreEnabled() bool {
	restoreMu.Lock()
	defer restoreMu.Unlock()
	return restoreIndex
}

// ValidateIndex checks the .shx sidecar of a shapefile: it must exist,
// carry the shapefile magic number, and declare a length matching its
// actual size. Returns nil when the index is usable.
func ValidateIndex(shpPath string) error {
	shxPath := sidecarPath(shpPath, ".shx")
	f, err := os.Open(shxPath)
	if err != nil {
		return eris.Wrapf(err, "shape: open index %s", shxPath)
	}
	defer f.Close()

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(f, header); err != nil {
		return eris.Wrapf(err, "shape: index %s truncated", shxPath)
	}
	if binary.BigEndian.Uint32(header[0:4]) != shapefileCode {
		return eris.Errorf("shape: index %s has invalid file code", shxPath)
	}

	info, err := f.Stat()
	if err != nil {
		return eris.Wrapf(err, "shape: stat index %s", shxPath)
	}
	// Header length field counts 16-bit words.
	declared := int64(binary.BigEndian.Uint32(header[24:28])) * 2
	if declared != info.Size() {
		return eris.Errorf("shape: index %s declares %d bytes, file has %d", shxPath, declared, info.Size())
	}
	return nil
}

// RebuildIndex reconstructs the .shx sidecar by scanning the record headers
// of the main .shp file. The existing index, if any, is overwritten. Only
// permitted while the restore flag is enabled, so a rebuild is always an
// explicit, scoped decision.
func RebuildIndex(shpPath string) error {
	if !restoreEnabled() {
		return eris.Errorf("shape: index rebuild requested for %s without restore flag", shpPath)
	}

	f, err := os.Open(shpPath)
	if err != nil {
		return eris.Wrapf(err, "shape: open %s", shpPath)
	}
	defer f.Close()

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(f, header); err != nil {
		return eris.Wrapf(err, "shape: %s header truncated", shpPath)
	}
	if binary.BigEndian.Uint32(header[0:4]) != shapefileCode {
		return eris.Errorf("shape: %s has invalid file code", shpPath)
	}

	// Scan record headers: 8 bytes each (record number, content length in
	// 16-bit words), skipping the content.
	type entry struct{ offset, length uint32 }
	var entries []entry
	offset := int64(headerLen)
	rec := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, rec); err != nil {
			if err == io.EOF {
				break
			}
			return eris.Wrapf(err, "shape: %s record header at offset %d", shpPath, offset)
		}
		contentWords := binary.BigEndian.Uint32(rec[4:8])
		entries = append(entries, entry{offset: uint32(offset / 2), length: contentWords})
		skip := int64(contentWords) * 2
		if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
			return eris.Wrapf(err, "shape: %s seek past record at offset %d", shpPath, offset)
		}
		offset += 8 + skip
	}

	shxPath := sidecarPath(shpPath, ".shx")
	out := make([]byte, headerLen+8*len(entries))
	copy(out, header)
	binary.BigEndian.PutUint32(out[24:28], uint32(len(out)/2))
	for i, e := range entries {
		binary.BigEndian.PutUint32(out[headerLen+8*i:], e.offset)
		binary.BigEndian.PutUint32(out[headerLen+8*i+4:], e.length)
	}
	if err := os.WriteFile(shxPath, out, 0o644); err != nil {
		return eris.Wrapf(err, "shape: write index %s", shxPath)
	}

	zap.L().Warn("shape: rebuilt missing or corrupt index",
		zap.String("shx", shxPath),
		zap.Int("records", len(entries)),
	)
	return nil
}

// countRecords returns the number of records in the main .shp file by
// scanning record headers.
func countRecords(shpPath string) (int, error) {
	f, err := os.Open(shpPath)
	if err != nil {
		return 0, eris.Wrapf(err, "shape: open %s", shpPath)
	}
	defer f.Close()

	if _, err := f.Seek(headerLen, io.SeekStart); err != nil {
		return 0, eris.Wrapf(err, "shape: seek %s", shpPath)
	}
	n := 0
	rec := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, rec); err != nil {
			if err == io.EOF {
				break
			}
			return 0, eris.Wrapf(err, "shape: %s record header", shpPath)
		}
		contentWords := binary.BigEndian.Uint32(rec[4:8])
		if _, err := f.Seek(int64(contentWords)*2, io.SeekCurrent); err != nil {
			return 0, eris.Wrapf(err, "shape: seek %s", shpPath)
		}
		n++
	}
	return n, nil
}

func sidecarPath(shpPath, ext string) string {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	return base + ext
}
