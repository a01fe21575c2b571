package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Archiver copies a generated creation to object storage and returns its public URL.
type Archiver interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// objectKey lays creations out as <prefix>/<yyyy>/<mm>/<dd>/<uuid><ext>.
func objectKey(prefix, contentType string, now time.Time) string {
	now = now.UTC()
	return path.Join(strings.Trim(prefix, "/"), fmt.Sprintf("%04d/%02d/%02d", now.Year(), now.Month(), now.Day()), uuid.NewString()+extensionFromContentType(contentType))
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

func extensionFromContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
