package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds the maximum upload size")
)

// allowedTypes is the accepted upload whitelist. Everything is re-encoded to
// JPEG regardless of what came in.
var allowedTypes = map[string]struct{}{
	"image/jpg":  {},
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

type Options struct {
	MaxBytes  int64
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// Processor turns an uploaded image buffer into a stored cover file.
type Processor struct {
	storage *Storage
	opts    Options
	logger  *zap.Logger
}

func NewProcessor(storage *Storage, opts Options, logger *zap.Logger) *Processor {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = 800
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = 1200
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	return &Processor{storage: storage, opts: opts, logger: logger}
}

func (p *Processor) Storage() *Storage { return p.storage }

// Process validates, decodes, resizes and stores an upload, returning the
// generated filename. Size and type are checked before any decoding happens.
// The file is fully written before Process returns, so the caller can safely
// persist a reference to it afterwards.
func (p *Processor) Process(data []byte, declaredType string) (string, error) {
	if int64(len(data)) > p.opts.MaxBytes {
		return "", ErrTooLarge
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty upload")
	}
	if _, ok := allowedTypes[declaredType]; !ok {
		return "", ErrUnsupportedType
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}

	dst := p.fit(src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.opts.Quality}); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	filename := newFilename()
	if err := p.storage.Save(filename, buf.Bytes()); err != nil {
		return "", err
	}

	p.logger.Debug("stored cover image",
		zap.String("filename", filename),
		zap.String("source_format", format),
		zap.Int("bytes", buf.Len()),
	)
	return filename, nil
}

// fit scales the image down to the configured bounds, preserving aspect ratio.
// Images already inside the bounds are never upscaled.
func (p *Processor) fit(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= p.opts.MaxWidth && h <= p.opts.MaxHeight {
		return src
	}

	scaleW := float64(p.opts.MaxWidth) / float64(w)
	scaleH := float64(p.opts.MaxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// newFilename generates a collision-resistant name from the current time plus
// a random suffix.
func newFilename() string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("book-%d-%s.jpg", time.Now().UnixMilli(), suffix)
}
