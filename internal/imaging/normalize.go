// Package imaging prepares uploaded scans for document analysis.
//
// JPEG, PNG and PDF uploads are submitted unchanged. Other raster formats
// the service may reject (GIF, BMP, TIFF, WebP) are decoded and re-encoded
// as JPEG.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"mime"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/dgallion1/omrgest/internal/omr"
)

const (
	TypeJPEG = "image/jpeg"
	TypePNG  = "image/png"
	TypePDF  = "application/pdf"

	// JPEGQuality is used when re-encoding unsupported raster formats.
	JPEGQuality = 90
)

// ErrUnsupportedFormat is returned for uploads that are neither a known
// image format nor a PDF.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// supportedTypes lists content types accepted for upload.
var supportedTypes = map[string]bool{
	TypeJPEG:     true,
	TypePNG:      true,
	TypePDF:      true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/webp": true,
}

// Options bounds what Normalize accepts.
type Options struct {
	// MaxPDFPages rejects PDFs with more pages. Zero means no limit.
	MaxPDFPages int
}

// IsSupportedContentType reports whether ct names an accepted format.
// Parameters such as charset are ignored.
func IsSupportedContentType(ct string) bool {
	return supportedTypes[baseType(ct)]
}

// DetectContentType returns the declared type when it is specific, and
// otherwise sniffs the payload.
func DetectContentType(declared string, data []byte) string {
	ct := baseType(declared)
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return baseType(http.DetectContentType(data))
}

// Normalize returns a document the analyzer accepts.
func Normalize(data []byte, contentType string, opts Options) (omr.Document, error) {
	if len(data) == 0 {
		return omr.Document{}, fmt.Errorf("empty upload")
	}
	ct := DetectContentType(contentType, data)

	switch {
	case ct == TypeJPEG || ct == TypePNG:
		return omr.Document{Data: data, ContentType: ct}, nil
	case ct == TypePDF:
		n, err := PDFPageCount(data)
		if err != nil {
			return omr.Document{}, err
		}
		if opts.MaxPDFPages > 0 && n > opts.MaxPDFPages {
			return omr.Document{}, fmt.Errorf("pdf has %d pages, limit is %d", n, opts.MaxPDFPages)
		}
		return omr.Document{Data: data, ContentType: ct}, nil
	case supportedTypes[ct]:
		out, err := toJPEG(data)
		if err != nil {
			return omr.Document{}, err
		}
		return omr.Document{Data: out, ContentType: TypeJPEG}, nil
	default:
		return omr.Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ct)
	}
}

func toJPEG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func baseType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(ct)
}
