package data

import (
	"strings"
)

// Normalize resolves a '/'-separated path into its canonical absolute form.
// Empty and '.' segments are dropped, '..' ascends one level but never above root.
func Normalize(path string) string {
	segments := strings.Split(strings.ReplaceAll(path, "\\", "/"), "/")
	out := make([]string, 0, len(segments))

	for _, segment := range segments {
		switch segment {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, segment)
		}
	}

	return "/" + strings.Join(out, "/")
}

// Combine resolves rel against base. Absolute rel paths start over from root.
func Combine(base, rel string) string {
	if strings.HasPrefix(rel, "/") {
		return Normalize(rel)
	}
	return Normalize(base + "/" + rel)
}

// Split returns the non-empty segments of a normalized path.
func Split(path string) []string {
	path = Normalize(path)
	if path == "/" {
		return nil
	}
	return strings.Split(path[1:], "/")
}

// Dir returns the parent of path; the parent of root is root.
func Dir(path string) string {
	path = Normalize(path)
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

// Base returns the last segment of path, or an empty string for root.
func Base(path string) string {
	path = Normalize(path)
	return path[strings.LastIndex(path, "/")+1:]
}

// Ext returns the extension of the last segment without the leading dot.
func Ext(path string) string {
	base := Base(path)
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return ""
	}
	return base[idx+1:]
}

// HasPrefix reports whether path equals prefix or lies below it.
// Both paths should be normalized before calling.
func HasPrefix(path, prefix string) bool {
	if prefix == "/" || path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// ToRelativePath strips prefix from path and returns the remainder without leading slash.
func ToRelativePath(path, prefix string) string {
	if prefix == "/" || prefix == "" {
		return strings.TrimPrefix(path, "/")
	}
	if path == prefix {
		return ""
	}
	return strings.TrimPrefix(strings.TrimPrefix(path, prefix), "/")
}
