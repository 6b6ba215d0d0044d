package workflow

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"strings"

	_ "image/png"

	_ "github.com/chai2010/webp"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// UploadedImage is the currently loaded image. It is replaced wholesale
// on each accepted upload.
type UploadedImage struct {
	Image    image.Image
	Filename string
	Format   string
	Size     int64
	Preview  string // data URL shown by the page
}

// ImageInfo is the externally visible view of an UploadedImage.
type ImageInfo struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Size     int64  `json:"size"`
	Preview  string `json:"preview,omitempty"`
}

// LoadImage validates and decodes an upload. Files over the size limit
// are rejected before any state change; malformed files surface as a
// decode failure and likewise leave the state untouched. On acceptance
// the previous classification result is cleared and the workflow moves
// to the image-loaded phase.
func (c *Controller) LoadImage(filename string, size int64, r io.Reader) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		c.notifier.Notify(LevelError, "Please wait for the current classification to finish.")
		return ErrBusy
	}
	c.mu.Unlock()

	if size > c.opts.MaxUploadBytes {
		c.notifier.Notify(LevelError, fmt.Sprintf("Image too large: the limit is %d MiB.", c.opts.MaxUploadBytes/(1024*1024)))
		return ErrOversize
	}

	// The declared size can lie; cap the read as well.
	data, err := io.ReadAll(io.LimitReader(r, c.opts.MaxUploadBytes+1))
	if err != nil {
		c.notifier.Notify(LevelError, "Could not read the uploaded file.")
		return fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > c.opts.MaxUploadBytes {
		c.notifier.Notify(LevelError, fmt.Sprintf("Image too large: the limit is %d MiB.", c.opts.MaxUploadBytes/(1024*1024)))
		return ErrOversize
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		c.notifier.Notify(LevelError, "That file does not look like a supported image (JPEG, PNG, WebP).")
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if !c.formatAllowed(format) {
		c.notifier.Notify(LevelError, fmt.Sprintf("Unsupported image format %q.", format))
		return fmt.Errorf("%w: format %q not allowed", ErrDecode, format)
	}

	preview, err := previewDataURL(img)
	if err != nil {
		c.log.Warn("failed to build preview", zap.Error(err))
		preview = ""
	}

	c.mu.Lock()
	c.image = &UploadedImage{
		Image:    img,
		Filename: filename,
		Format:   format,
		Size:     int64(len(data)),
		Preview:  preview,
	}
	c.results = nil
	c.failure = ""
	c.phase = PhaseImageLoaded
	c.progress = 0
	c.mu.Unlock()

	c.log.Info("image loaded",
		zap.String("filename", filename),
		zap.String("format", format),
		zap.Int("bytes", len(data)))
	c.notifier.Notify(LevelInfo, "Image loaded. Pick a model and classify.")
	return nil
}

func (c *Controller) formatAllowed(format string) bool {
	for _, allowed := range c.opts.AllowedFormats {
		if strings.EqualFold(format, allowed) {
			return true
		}
	}
	return false
}

// previewDataURL renders a small JPEG thumbnail of img as a data URL.
func previewDataURL(img image.Image) (string, error) {
	thumb := imaging.Fit(img, 320, 320, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return "", fmt.Errorf("failed to encode preview: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
