package data

import (
	"mime"
	"strings"
)

type ContentType string

const (
	ContentTypeTextPlain         ContentType = "text/plain"
	ContentTypeTextHTML          ContentType = "text/html"
	ContentTypeTextCSS           ContentType = "text/css"
	ContentTypeTextJavaScript    ContentType = "text/javascript"
	ContentTypeTextCSV           ContentType = "text/csv"
	ContentTypeImagePNG          ContentType = "image/png"
	ContentTypeImageJPEG         ContentType = "image/jpeg"
	ContentTypeApplicationPDF    ContentType = "application/pdf"
	ContentTypeApplicationZip    ContentType = "application/zip"
	ContentTypeApplicationGZip   ContentType = "application/gzip"
	ContentTypeApplicationXTar   ContentType = "application/x-tar"
	ContentTypeApplicationJSON   ContentType = "application/json"
	ContentTypeApplicationXML    ContentType = "application/xml"
	ContentTypeApplicationStream ContentType = "application/octet-stream"
	ContentTypeDirectory         ContentType = "application/x-directory"
)

// extensionToMIME takes precedence over the platform mime table,
// which differs between hosts for some of these.
var extensionToMIME = map[string]ContentType{
	"txt":  ContentTypeTextPlain,
	"html": ContentTypeTextHTML,
	"css":  ContentTypeTextCSS,
	"js":   ContentTypeTextJavaScript,
	"csv":  ContentTypeTextCSV,
	"png":  ContentTypeImagePNG,
	"jpg":  ContentTypeImageJPEG,
	"jpeg": ContentTypeImageJPEG,
	"pdf":  ContentTypeApplicationPDF,
	"zip":  ContentTypeApplicationZip,
	"gz":   ContentTypeApplicationGZip,
	"tar":  ContentTypeApplicationXTar,
	"json": ContentTypeApplicationJSON,
	"xml":  ContentTypeApplicationXML,
}

// GetMIMEType guesses the content type of path from its extension.
func GetMIMEType(path string) ContentType {
	ext := strings.ToLower(Ext(path))
	if ext == "" {
		return ContentTypeApplicationStream
	}

	if contentType, exists := extensionToMIME[ext]; exists {
		return contentType
	}

	if guess := mime.TypeByExtension("." + ext); guess != "" {
		if idx := strings.Index(guess, ";"); idx >= 0 {
			guess = guess[:idx]
		}
		return ContentType(guess)
	}

	return ContentTypeApplicationStream
}
