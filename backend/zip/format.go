package zip

import (
	"io"
	"strings"
	"time"

	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/stream"
)

const (
	signatureEndOfDirectory = 0x06054b50
	signatureDirectoryEntry = 0x02014b50
	signatureLocalHeader    = 0x04034b50

	endOfDirectoryLen = 22
	localHeaderLen    = 30
)

const (
	MethodStore   uint16 = 0
	MethodDeflate uint16 = 8
)

// Entry is one record of the central directory. Offsets point into the archive
// and are only followed when the entry is opened.
type Entry struct {
	Path             string
	Dir              bool
	Method           uint16
	CRC32            uint32
	HeaderOffset     int64
	CompressedSize   int64
	UncompressedSize int64
	ModTime          time.Time
}

type endOfDirectory struct {
	entries         uint16
	directorySize   uint32
	directoryOffset uint32
}

// readEndOfDirectory reads the fixed trailer at the very end of source.
// Archives with a trailing comment are not recognized.
func readEndOfDirectory(source stream.Stream) (*endOfDirectory, error) {
	length, err := source.Length()
	if err != nil {
		return nil, err
	}
	if length < endOfDirectoryLen {
		return nil, errors.InvalidFormat(nil, "archive too small (%d bytes)", length)
	}

	if err := stream.SetPosition(source, length-endOfDirectoryLen); err != nil {
		return nil, err
	}
	raw, err := stream.ReadBytes(source, endOfDirectoryLen)
	if err != nil {
		return nil, errors.InvalidFormat(err, "unreadable end of central directory")
	}

	r := stream.NewMemory(raw)
	if signature, _ := stream.ReadU32LE(r); signature != signatureEndOfDirectory {
		return nil, errors.InvalidFormat(nil, "bad end of central directory signature 0x%08x", signature)
	}

	// disk number, start disk, entries on this disk
	r.Seek(6, io.SeekCurrent)

	eocd := &endOfDirectory{}
	eocd.entries, _ = stream.ReadU16LE(r)
	eocd.directorySize, _ = stream.ReadU32LE(r)
	eocd.directoryOffset, _ = stream.ReadU32LE(r)

	if int64(eocd.directoryOffset)+int64(eocd.directorySize) > length-endOfDirectoryLen {
		return nil, errors.InvalidFormat(nil, "central directory out of bounds (offset=%d, size=%d)",
			eocd.directoryOffset, eocd.directorySize)
	}

	return eocd, nil
}

// readDirectory parses exactly the central directory range named by eocd.
func readDirectory(source stream.Stream, eocd *endOfDirectory) ([]*Entry, error) {
	slice, err := stream.Slice(source, int64(eocd.directoryOffset), int64(eocd.directorySize))
	if err != nil {
		return nil, err
	}

	raw, err := stream.ReadAll(slice)
	if err != nil {
		return nil, errors.InvalidFormat(err, "unreadable central directory")
	}

	r := stream.NewMemory(raw)
	entries := make([]*Entry, 0, eocd.entries)

	for i := 0; i < int(eocd.entries); i++ {
		entry, err := readDirectoryEntry(r)
		if err != nil {
			return nil, errors.InvalidFormat(err, "central directory record %d", i)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func readDirectoryEntry(r stream.Stream) (*Entry, error) {
	header, err := stream.ReadBytes(r, 46)
	if err != nil {
		return nil, err
	}

	h := stream.NewMemory(header)
	if signature, _ := stream.ReadU32LE(h); signature != signatureDirectoryEntry {
		return nil, errors.InvalidFormat(nil, "bad record signature 0x%08x", signature)
	}

	// version made by, version needed, flags
	h.Seek(6, io.SeekCurrent)

	entry := &Entry{}
	entry.Method, _ = stream.ReadU16LE(h)
	modTime, _ := stream.ReadU16LE(h)
	modDate, _ := stream.ReadU16LE(h)
	entry.CRC32, _ = stream.ReadU32LE(h)
	compressedSize, _ := stream.ReadU32LE(h)
	uncompressedSize, _ := stream.ReadU32LE(h)
	nameLen, _ := stream.ReadU16LE(h)
	extraLen, _ := stream.ReadU16LE(h)
	commentLen, _ := stream.ReadU16LE(h)

	// disk number start, internal attributes, external attributes
	h.Seek(8, io.SeekCurrent)
	headerOffset, _ := stream.ReadU32LE(h)

	name, err := stream.ReadBytes(r, int(nameLen))
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(int64(extraLen)+int64(commentLen), io.SeekCurrent); err != nil {
		return nil, err
	}

	entry.Path = data.Normalize(string(name))
	entry.Dir = strings.HasSuffix(string(name), "/")
	entry.CompressedSize = int64(compressedSize)
	entry.UncompressedSize = int64(uncompressedSize)
	entry.HeaderOffset = int64(headerOffset)
	entry.ModTime = msDosTime(modDate, modTime)

	return entry, nil
}

// payloadStart re-reads the local header of entry; its variable part may differ
// from the central directory record.
func payloadStart(source stream.Stream, entry *Entry) (int64, error) {
	slice, err := stream.Slice(source, entry.HeaderOffset, localHeaderLen)
	if err != nil {
		return 0, err
	}

	header, err := stream.ReadBytes(slice, localHeaderLen)
	if err != nil {
		return 0, errors.InvalidFormat(err, "local header of '%s'", entry.Path)
	}

	h := stream.NewMemory(header)
	if signature, _ := stream.ReadU32LE(h); signature != signatureLocalHeader {
		return 0, errors.InvalidFormat(nil, "bad local header signature 0x%08x for '%s'", signature, entry.Path)
	}

	h.Seek(26, io.SeekStart)
	nameLen, _ := stream.ReadU16LE(h)
	extraLen, _ := stream.ReadU16LE(h)

	return entry.HeaderOffset + localHeaderLen + int64(nameLen) + int64(extraLen), nil
}

func msDosTime(date, clock uint16) time.Time {
	return time.Date(
		int(date>>9)+1980,
		time.Month(date>>5&0xf),
		int(date&0x1f),
		int(clock>>11),
		int(clock>>5&0x3f),
		int(clock&0x1f)*2,
		0,
		time.UTC,
	)
}
