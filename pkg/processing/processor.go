package processing

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/plant-doctor/internal/utils"
	"github.com/menta2k/plant-doctor/pkg/types"
)

const (
	defaultMaxDimension = 1024
	defaultJPEGQuality  = 90
	defaultMinDimension = 32

	// maxDownloadSize caps images fetched over http(s)
	maxDownloadSize = 20 << 20
)

// Processor turns user supplied image buffers into classifier input
type Processor struct {
	opts       types.ProcessingOptions
	httpClient *http.Client
}

// NewProcessor creates a new image processor with default options
func NewProcessor() *Processor {
	return NewProcessorWithOptions(types.ProcessingOptions{
		MaxDimension: defaultMaxDimension,
		JPEGQuality:  defaultJPEGQuality,
		MinDimension: defaultMinDimension,
	})
}

// NewProcessorWithOptions creates a processor with custom options.
// A zero MaxDimension keeps the original size.
func NewProcessorWithOptions(opts types.ProcessingOptions) *Processor {
	if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = defaultJPEGQuality
	}
	if opts.MinDimension < 1 {
		opts.MinDimension = 1
	}
	return &Processor{
		opts:       opts,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Prepare decodes, validates, downsizes and re-encodes an image as JPEG
func (p *Processor) Prepare(data []byte) (*types.ImageInput, error) {
	if len(data) == 0 {
		return nil, types.ErrNoImage
	}

	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() < p.opts.MinDimension || b.Dy() < p.opts.MinDimension {
		return nil, fmt.Errorf("%w: %dx%d (minimum: %d)", types.ErrImageTooSmall, b.Dx(), b.Dy(), p.opts.MinDimension)
	}

	if p.opts.FocusRatio > 0 {
		img = FocusCrop(img, p.opts.FocusRatio, p.opts.MinDimension)
		b = img.Bounds()
	}

	if maxDim := p.opts.MaxDimension; maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.opts.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return &types.ImageInput{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
		Digest:   hex.EncodeToString(sum[:]),
	}, nil
}

// decodeImageFromBytes decodes an image honouring EXIF orientation, with a WebP fallback
func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, types.ErrInvalidImage
}

// DecodeDataURL extracts the payload of a base64 data URL as produced by
// canvas.toDataURL in the browser webcam capture
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, types.ErrNoImage
	}
	if !strings.HasPrefix(s, "data:") {
		return nil, fmt.Errorf("%w: not a data URL", types.ErrInvalidImage)
	}

	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return nil, fmt.Errorf("%w: malformed data URL", types.ErrInvalidImage)
	}
	meta, payload := s[len("data:"):comma], s[comma+1:]
	if !strings.HasPrefix(meta, "image/") || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: expected base64 image data URL", types.ErrInvalidImage)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidImage, err)
	}
	return data, nil
}

// LoadImageFromURL downloads an image and returns its raw bytes
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) ([]byte, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", "Plant-Doctor/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %v", err)
	}
	return data, nil
}

// LoadSmart reads an image from either a file path or an http(s) URL
func (p *Processor) LoadSmart(ctx context.Context, source string) ([]byte, error) {
	if utils.IsURL(source) {
		return p.LoadImageFromURL(ctx, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}
