package vision

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/facturapass/password-assigner/internal/extract"
)

// PageImage is one rendered PDF page ready to embed in a multimodal request.
type PageImage struct {
	Page int
	MIME string
	Data []byte
}

// Rasterizer turns a PDF payload into page images. The provider's native PDF
// handling is unreliable for scanned documents, so pages are always rendered
// locally before upload.
type Rasterizer interface {
	Render(ctx context.Context, pdf []byte) ([]PageImage, error)
}

// PopplerRasterizer renders pages with pdftoppm, bounds their width, and
// re-encodes them as JPEG to keep request sizes sane.
type PopplerRasterizer struct {
	logger      *slog.Logger
	runner      extract.Runner
	pdftoppm    string
	dpi         int
	maxWidth    int
	jpegQuality int
}

func NewPopplerRasterizer(logger *slog.Logger, runner extract.Runner, pdftoppm string, dpi, maxWidth, jpegQuality int) *PopplerRasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = extract.ExecRunner{}
	}
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 100
	}
	if maxWidth <= 0 {
		maxWidth = 1500
	}
	if jpegQuality <= 0 {
		jpegQuality = 75
	}
	return &PopplerRasterizer{
		logger:      logger,
		runner:      runner,
		pdftoppm:    pdftoppm,
		dpi:         dpi,
		maxWidth:    maxWidth,
		jpegQuality: jpegQuality,
	}
}

func (r *PopplerRasterizer) Render(ctx context.Context, pdf []byte) ([]PageImage, error) {
	tmpDir, err := os.MkdirTemp("", "pa-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			r.logger.Warn("vision.raster.tmp_remove_error", "path", tmpDir, "error", rerr)
		}
	}()

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.pdftoppm, "-r", fmt.Sprintf("%d", r.dpi), "-png", in, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %s: %w", string(errb), err)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}

	pages := make([]PageImage, 0, len(matches))
	for i, path := range matches {
		data, err := r.encodePage(path)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		pages = append(pages, PageImage{Page: i + 1, MIME: "image/jpeg", Data: data})
	}

	r.logger.Info("vision.raster.ok", "pages", len(pages), "dpi", r.dpi)
	return pages, nil
}

func (r *PopplerRasterizer) encodePage(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			r.logger.Warn("vision.raster.close_error", "path", path, "error", cerr)
		}
	}()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	if img.Bounds().Dx() > r.maxWidth {
		img = imaging.Resize(img, r.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
