package vfs

import (
	"fmt"
	"time"

	"github.com/mwantia/asyncvfs/data"
)

// Stat is a snapshot taken by one stat call. It is never refreshed.
type Stat struct {
	File        File
	Exists      bool
	IsDirectory bool
	Size        int64

	ModTime     time.Time
	ContentType data.ContentType
}

func NewFileStat(file File, size int64, modTime time.Time) *Stat {
	return &Stat{
		File:        file,
		Exists:      true,
		Size:        size,
		ModTime:     modTime,
		ContentType: data.GetMIMEType(file.Path()),
	}
}

func NewDirectoryStat(file File, modTime time.Time) *Stat {
	return &Stat{
		File:        file,
		Exists:      true,
		IsDirectory: true,
		ModTime:     modTime,
		ContentType: data.ContentTypeDirectory,
	}
}

// NotExists describes a path that is absent from its backend.
func NotExists(file File) *Stat {
	return &Stat{
		File: file,
	}
}

func (s *Stat) String() string {
	switch {
	case !s.Exists:
		return fmt.Sprintf("%s (missing)", s.File)
	case s.IsDirectory:
		return fmt.Sprintf("%s (dir)", s.File)
	default:
		return fmt.Sprintf("%s (%d bytes)", s.File, s.Size)
	}
}
