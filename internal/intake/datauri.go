package intake

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidDataURI = errors.New("invalid data uri")

// EncodeDataURI renders data as data:<mime>;base64,<payload>.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI parses a base64 data URI. A bare base64 payload is accepted when
// fallbackType is non-empty.
func DecodeDataURI(uri, fallbackType string) ([]byte, string, error) {
	payload := uri
	mimeType := fallbackType
	if strings.HasPrefix(uri, "data:") {
		header, rest, ok := strings.Cut(uri[len("data:"):], ",")
		if !ok {
			return nil, "", fmt.Errorf("%w: missing payload", ErrInvalidDataURI)
		}
		mediaType, isBase64 := strings.CutSuffix(header, ";base64")
		if !isBase64 {
			return nil, "", fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
		}
		if mediaType != "" {
			mimeType = mediaType
		}
		payload = rest
	}
	if mimeType == "" {
		return nil, "", fmt.Errorf("%w: unknown media type", ErrInvalidDataURI)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrInvalidDataURI)
	}
	return data, mimeType, nil
}
