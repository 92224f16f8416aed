package domain

import "strings"

// ImageFormat represents the receipt image formats accepted for extraction.
type ImageFormat string

const (
	ImageFormatJPEG ImageFormat = "jpeg"
	ImageFormatPNG  ImageFormat = "png"
	ImageFormatWEBP ImageFormat = "webp"
	ImageFormatHEIC ImageFormat = "heic"
	ImageFormatHEIF ImageFormat = "heif"
)

// AllowedImageFormats maps ImageFormat to its MIME content type.
var AllowedImageFormats = map[ImageFormat]string{
	ImageFormatJPEG: "image/jpeg",
	ImageFormatPNG:  "image/png",
	ImageFormatWEBP: "image/webp",
	ImageFormatHEIC: "image/heic",
	ImageFormatHEIF: "image/heif",
}

// AllowedImageContentTypes maps MIME content types back to ImageFormat.
var AllowedImageContentTypes = map[string]ImageFormat{
	"image/jpeg": ImageFormatJPEG,
	"image/png":  ImageFormatPNG,
	"image/webp": ImageFormatWEBP,
	"image/heic": ImageFormatHEIC,
	"image/heif": ImageFormatHEIF,
}

// ParseImageFormat accepts a file extension, format name or MIME type.
func ParseImageFormat(s string) (ImageFormat, bool) {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, ".")))
	if f, ok := AllowedImageContentTypes[s]; ok {
		return f, true
	}
	s = strings.TrimPrefix(s, "image/")
	if s == "jpg" {
		return ImageFormatJPEG, true
	}
	f := ImageFormat(s)
	if _, ok := AllowedImageFormats[f]; ok {
		return f, true
	}
	return "", false
}

// ExtractionStatus is the terminal outcome of a receipt extraction.
type ExtractionStatus string

const (
	ExtractionStatusSuccess ExtractionStatus = "success"
	ExtractionStatusPartial ExtractionStatus = "partial"
	ExtractionStatusFailed  ExtractionStatus = "failed"
)

// ExpenseSource records how an expense entered the system.
type ExpenseSource string

const (
	ExpenseSourceManual        ExpenseSource = "manual"
	ExpenseSourceAICategorized ExpenseSource = "ai_categorized"
	ExpenseSourceScanner       ExpenseSource = "scanner"
)

// ValidationSeverity indicates how a failed receipt rule affects the extraction status.
type ValidationSeverity string

const (
	// ValidationSeverityError downgrades a successful extraction to partial.
	ValidationSeverityError ValidationSeverity = "error"
	// ValidationSeverityWarning is reported as a discrepancy only.
	ValidationSeverityWarning ValidationSeverity = "warning"
)

// HealthStatus summarizes service readiness.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
)
