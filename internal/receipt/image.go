package receipt

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"ledgerlens/internal/domain"
)

// DefaultMaxImageBytes bounds receipt uploads when no limit is configured.
const DefaultMaxImageBytes int64 = 10 << 20

// sameFamily treats HEIC and HEIF as one container family.
func sameFamily(a, b domain.ImageFormat) bool {
	if a == b {
		return true
	}
	isHeif := func(f domain.ImageFormat) bool { return f == domain.ImageFormatHEIC || f == domain.ImageFormatHEIF }
	return isHeif(a) && isHeif(b)
}

// ValidateImage checks the payload before any external call and returns the sniffed
// format and content type. declared may be empty, an extension, a format name or a MIME type.
func ValidateImage(data []byte, declared string, maxBytes int64) (domain.ImageFormat, string, error) {
	if len(data) == 0 {
		return "", "", domain.ErrEmptyImage
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if int64(len(data)) > maxBytes {
		return "", "", fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrImageTooLarge, len(data), maxBytes)
	}

	detected := mimetype.Detect(data)
	var sniffed domain.ImageFormat
	for ct, f := range domain.AllowedImageContentTypes {
		if detected.Is(ct) {
			sniffed = f
			break
		}
	}
	if sniffed == "" {
		return "", "", fmt.Errorf("%w: detected %s", domain.ErrUnsupportedImageFormat, detected.String())
	}

	if declared != "" {
		want, ok := domain.ParseImageFormat(declared)
		if !ok {
			return "", "", fmt.Errorf("%w: %s", domain.ErrUnsupportedImageFormat, declared)
		}
		if !sameFamily(want, sniffed) {
			return "", "", fmt.Errorf("%w: declared %s but content is %s", domain.ErrUnsupportedImageFormat, want, sniffed)
		}
	}
	return sniffed, domain.AllowedImageFormats[sniffed], nil
}
