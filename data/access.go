package data

import "strings"

// OpenMode is an orthogonal set of flags controlling how a file is opened.
type OpenMode int

const (
	OpenRead              OpenMode = 1 << iota // open for reading
	OpenWrite                                  // open for writing
	OpenAppend                                 // position at the end before writing
	OpenCreateIfNotExists                      // create the file when missing
	OpenTruncate                               // truncate to zero length on open
)

// Common combinations.
const (
	ModeRead   = OpenRead
	ModeWrite  = OpenRead | OpenWrite
	ModeAppend = OpenRead | OpenWrite | OpenAppend | OpenCreateIfNotExists
	ModeCreate = OpenRead | OpenWrite | OpenCreateIfNotExists | OpenTruncate
)

func (m OpenMode) CanRead() bool {
	return m&OpenRead != 0
}

func (m OpenMode) CanWrite() bool {
	return m&(OpenWrite|OpenAppend|OpenTruncate) != 0
}

func (m OpenMode) HasAppend() bool {
	return m&OpenAppend != 0
}

func (m OpenMode) HasCreate() bool {
	return m&OpenCreateIfNotExists != 0
}

func (m OpenMode) HasTruncate() bool {
	return m&OpenTruncate != 0
}

func (m OpenMode) String() string {
	var parts []string
	for _, f := range []struct {
		flag OpenMode
		name string
	}{
		{OpenRead, "read"},
		{OpenWrite, "write"},
		{OpenAppend, "append"},
		{OpenCreateIfNotExists, "create"},
		{OpenTruncate, "truncate"},
	} {
		if m&f.flag != 0 {
			parts = append(parts, f.name)
		}
	}

	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
