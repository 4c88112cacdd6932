package vision

import (
	"bytes"
	"fmt"
	"os"

	"soa-extract/pkg/models"

	"github.com/disintegration/imaging"
)

var mimeTypes = map[imaging.Format]string{
	imaging.JPEG: "image/jpeg",
	imaging.PNG:  "image/png",
	imaging.GIF:  "image/gif",
	imaging.TIFF: "image/tiff",
	imaging.BMP:  "image/bmp",
}

// ImageError is returned when a stored document cannot be used as model input
type ImageError struct {
	Path string
	Err  error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("failed to load image %s: %v", e.Path, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// LoadImage reads the document at path and checks that it decodes. When
// maxDim is positive and the image exceeds it on either side, the image is
// scaled down to fit and re-encoded in its original format.
func LoadImage(path string, maxDim int) (*models.Image, error) {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return nil, &ImageError{Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ImageError{Path: path, Err: err}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ImageError{Path: path, Err: err}
	}

	// Only touch the bytes when resizing, the model gets the original otherwise
	bounds := img.Bounds()
	if maxDim > 0 && (bounds.Dx() > maxDim || bounds.Dy() > maxDim) {
		resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, format); err != nil {
			return nil, &ImageError{Path: path, Err: fmt.Errorf("failed to re-encode resized image: %w", err)}
		}
		data = buf.Bytes()
	}

	return &models.Image{
		Path:     path,
		Data:     data,
		MIMEType: mimeTypes[format],
	}, nil
}
