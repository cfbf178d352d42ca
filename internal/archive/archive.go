// Package archive stores downloaded result files.
package archive

import (
	"context"
	"io"
	"path"
	"strings"
)

// Store persists one downloaded file and returns a URI for it.
type Store interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// ObjectName joins a job id and a server data path into a store-relative name.
// Leading slashes and parent references are dropped; stores still enforce
// their own containment.
func ObjectName(prefix, jobID, dataPath string) string {
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if jobID != "" {
		parts = append(parts, jobID)
	}
	clean := path.Clean("/" + strings.ReplaceAll(dataPath, "\\", "/"))
	parts = append(parts, strings.TrimPrefix(clean, "/"))
	return path.Join(parts...)
}
