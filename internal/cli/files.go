package cli

import (
	"mime"
	"net/http"
	"path/filepath"
)

func fileBase(path string) string {
	return filepath.Base(path)
}

// sniffMime prefers the extension mapping and falls back to content
// sniffing for extensionless files.
func sniffMime(path string, data []byte) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	return http.DetectContentType(data)
}
