package pdfextract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/scholardigest/paper-digest-service/internal/domain"
	"github.com/scholardigest/paper-digest-service/internal/observability"
)

// Extraction is the result of downloading and parsing one paper's PDF.
type Extraction struct {
	// ArtifactPath is where the PDF artifact lives on disk.
	ArtifactPath string
	// PageCount is the number of pages in the document.
	PageCount int
	// Pages holds the extracted plain text per page, in order. Pages whose
	// text could not be decoded are present as empty strings.
	Pages []string
	// FullText is the concatenated page text.
	FullText string
	// SizeBytes is the artifact size on disk.
	SizeBytes int64
	// FromCache reports whether the artifact was reused rather than downloaded.
	FromCache bool
}

// Extractor downloads PDFs, caches the artifacts on disk keyed by the
// normalized arXiv ID, and extracts page-level text. A cached artifact is
// never re-downloaded.
type Extractor struct {
	downloader *Downloader
	cacheDir   string
	maxPages   int
	metrics    *observability.Metrics
}

// NewExtractor creates an Extractor. maxPages of 0 extracts every page;
// metrics may be nil.
func NewExtractor(downloader *Downloader, cacheDir string, maxPages int, metrics *observability.Metrics) *Extractor {
	return &Extractor{
		downloader: downloader,
		cacheDir:   cacheDir,
		maxPages:   maxPages,
		metrics:    metrics,
	}
}

// Extract returns the parsed text of the paper's PDF, downloading the
// artifact if it is not already cached. Download failures report as
// domain.ErrDownloadFailed; parse failures as domain.ErrUnreadablePDF.
// Both leave the caller free to degrade to abstract-only processing.
func (e *Extractor) Extract(ctx context.Context, arxivID, pdfURL string) (*Extraction, error) {
	path := e.artifactPath(arxivID)

	content, fromCache, err := e.loadOrDownload(ctx, path, pdfURL)
	if err != nil {
		return nil, err
	}

	pages, err := extractPages(content, e.maxPages)
	if err != nil {
		e.recordExtractionFailed()
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadablePDF, err)
	}

	fullText := strings.TrimSpace(strings.Join(pages, "\n\n"))
	if fullText == "" {
		e.recordExtractionFailed()
		return nil, fmt.Errorf("%w: no text content", domain.ErrUnreadablePDF)
	}

	return &Extraction{
		ArtifactPath: path,
		PageCount:    len(pages),
		Pages:        pages,
		FullText:     fullText,
		SizeBytes:    int64(len(content)),
		FromCache:    fromCache,
	}, nil
}

// Cached reports whether an artifact for the given ID is already on disk.
func (e *Extractor) Cached(arxivID string) bool {
	_, err := os.Stat(e.artifactPath(arxivID))
	return err == nil
}

// artifactPath computes the on-disk location for a paper's PDF. Old-style
// IDs contain a slash, which is flattened for the filename.
func (e *Extractor) artifactPath(arxivID string) string {
	key := domain.NormalizeArxivID(arxivID)
	key = strings.ReplaceAll(key, "/", "_")
	return filepath.Join(e.cacheDir, key+".pdf")
}

// loadOrDownload returns the artifact bytes, reading from the cache when
// present and downloading plus persisting otherwise.
func (e *Extractor) loadOrDownload(ctx context.Context, path, pdfURL string) ([]byte, bool, error) {
	if content, err := os.ReadFile(path); err == nil {
		if e.metrics != nil {
			e.metrics.RecordPDFCacheHit()
		}
		return content, true, nil
	}

	result, err := e.downloader.Download(ctx, pdfURL)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordPDFDownloadFailed()
		}
		return nil, false, err
	}
	if e.metrics != nil {
		e.metrics.RecordPDFDownload(result.SizeBytes)
	}

	if err := os.MkdirAll(e.cacheDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("%w: creating cache dir: %v", domain.ErrDownloadFailed, err)
	}

	// Write via a temp file so a crashed run never leaves a truncated artifact.
	tmp, err := os.CreateTemp(e.cacheDir, ".download-*")
	if err != nil {
		return nil, false, fmt.Errorf("%w: creating temp file: %v", domain.ErrDownloadFailed, err)
	}
	if _, err := tmp.Write(result.Content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, false, fmt.Errorf("%w: writing artifact: %v", domain.ErrDownloadFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, false, fmt.Errorf("%w: closing artifact: %v", domain.ErrDownloadFailed, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return nil, false, fmt.Errorf("%w: storing artifact: %v", domain.ErrDownloadFailed, err)
	}

	return result.Content, false, nil
}

func (e *Extractor) recordExtractionFailed() {
	if e.metrics != nil {
		e.metrics.RecordPDFExtractionFailed()
	}
}

// extractPages parses the PDF and returns per-page plain text.
func extractPages(content []byte, maxPages int) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	total := reader.NumPage()
	if total <= 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	if maxPages > 0 && total > maxPages {
		total = maxPages
	}

	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Undecodable pages are tolerated; the rest of the document
			// still feeds summarization.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	return pages, nil
}
