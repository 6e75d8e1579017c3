package handler

import (
	"path/filepath"
	"strings"
)

var mimeTypes = map[string]string{
	"7z":   "application/x-7z-compressed",
	"atom": "application/atom+xml",
	"bin":  "application/octet-stream",
	"bmp":  "image/x-ms-bmp",
	"css":  "text/css",
	"csv":  "text/csv",
	"doc":  "application/msword",
	"exe":  "application/octet-stream",
	"gif":  "image/gif",
	"htm":  "text/html",
	"html": "text/html",
	"ico":  "image/x-icon",
	"iso":  "application/octet-stream",
	"jar":  "application/java-archive",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"js":   "application/javascript",
	"json": "application/json",
	"md":   "text/markdown",
	"mjs":  "application/javascript",
	"mov":  "video/quicktime",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"mpeg": "video/mpeg",
	"pdf":  "application/pdf",
	"png":  "image/png",
	"ps":   "application/postscript",
	"rss":  "application/rss+xml",
	"rtf":  "application/rtf",
	"svg":  "image/svg+xml",
	"tar":  "application/x-tar",
	"txt":  "text/plain",
	"wasm": "application/wasm",
	"webm": "video/webm",
	"webp": "image/webp",
	"woff": "font/woff",
	"xls":  "application/vnd.ms-excel",
	"xml":  "text/xml",
	"zip":  "application/zip",
}

// Non text/* types that still carry characters.
var textualTypes = map[string]bool{
	"application/atom+xml":   true,
	"application/javascript": true,
	"application/json":       true,
	"application/rss+xml":    true,
	"image/svg+xml":          true,
}

// contentType picks the Content-Type for a file by its extension. Textual
// types get an explicit UTF-8 charset; defaultType is returned as is.
func contentType(name, defaultType string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	t, ok := mimeTypes[ext]
	if !ok {
		return defaultType
	}
	if strings.HasPrefix(t, "text/") || textualTypes[t] {
		return t + "; charset=utf-8"
	}
	return t
}
