// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/omics-oracle/omics-oracle/internal/httputil"
	"github.com/omics-oracle/omics-oracle/internal/identifier"
	"github.com/omics-oracle/omics-oracle/internal/store"
	"github.com/omics-oracle/omics-oracle/pkg/types"
)

var pdfMagic = []byte("%PDF-")

const (
	defaultMinPDFSize = 10 * 1024
	defaultMaxPDFSize = 200 * 1024 * 1024
)

// errValidation marks a response body that is not an acceptable PDF.
// Validation failures skip straight to the next candidate.
type errValidation struct{ reason string }

func (e errValidation) Error() string { return "validation failed: " + e.reason }

// Downloader walks a publication's URL waterfall and stores the first
// validated PDF. One Downloader is shared across publications; callers
// bound their own concurrency.
type Downloader struct {
	http   *http.Client
	store  *store.Store
	cfg    types.DownloadConfig
	root   string
	logger *slog.Logger
}

// NewDownloader builds a downloader storing PDFs under root.
func NewDownloader(st *store.Store, cfg types.DownloadConfig, root string, logger *slog.Logger) *Downloader {
	if cfg.PerURLRetries <= 0 {
		cfg.PerURLRetries = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Validation.MinSize <= 0 {
		cfg.Validation.MinSize = defaultMinPDFSize
	}
	if cfg.Validation.MaxSize <= 0 {
		cfg.Validation.MaxSize = defaultMaxPDFSize
	}
	return &Downloader{
		http:   &http.Client{Timeout: 30 * time.Second},
		store:  st,
		cfg:    cfg,
		root:   root,
		logger: logger,
	}
}

// DownloadWithFallback tries each candidate in order until one yields a
// validated PDF, storing it under {root}/{geoID}/{rel}/{filename}. Every
// try is appended to download history. Exhausting all candidates is not
// an error: the result reports success=false with the attempt list.
func (d *Downloader) DownloadWithFallback(
	ctx context.Context,
	pub types.Publication,
	candidates []types.URLCandidate,
	geoID string,
	rel types.Relationship,
) (types.DownloadResult, error) {
	key, err := identifier.Key(pub)
	if err != nil {
		return types.DownloadResult{}, err
	}
	filename, err := identifier.Filename(pub)
	if err != nil {
		return types.DownloadResult{}, err
	}

	// An already-stored artifact makes the waterfall a no-op.
	if artifact, err := d.store.GetPDF(ctx, key); err == nil {
		return types.DownloadResult{
			Success:  true,
			FilePath: artifact.FilePath,
			FileHash: artifact.FileHash,
			FileSize: artifact.FileSize,
			Source:   artifact.Source,
		}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.DownloadResult{}, err
	}

	destDir := filepath.Join(d.root, geoID, string(rel))
	result := types.DownloadResult{}

	for _, cand := range candidates {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		body, attempt, err := d.fetchWithRetries(ctx, key, cand, &result)
		if err != nil {
			continue
		}

		filePath, hash, size, storeErr := d.storePDF(ctx, key, destDir, filename, body, cand, attempt, &result)
		if storeErr != nil {
			return result, storeErr
		}

		result.Success = true
		result.FilePath = filePath
		result.FileHash = hash
		result.FileSize = size
		result.Source = cand.Source
		if !result.Deduplicated {
			d.writeMetadata(filePath, pub, cand, hash, size)
		}
		return result, nil
	}
	return result, nil
}

// metadataSidecar makes a stored PDF self-describing on disk, without
// the database.
type metadataSidecar struct {
	Title      string    `yaml:"title,omitempty"`
	PMID       string    `yaml:"pmid,omitempty"`
	DOI        string    `yaml:"doi,omitempty"`
	Journal    string    `yaml:"journal,omitempty"`
	Year       int       `yaml:"year,omitempty"`
	Source     string    `yaml:"source"`
	URL        string    `yaml:"url"`
	FileHash   string    `yaml:"file_hash"`
	FileSize   int64     `yaml:"file_size"`
	Downloaded time.Time `yaml:"downloaded"`
}

func (d *Downloader) writeMetadata(pdfPath string, pub types.Publication, cand types.URLCandidate, hash string, size int64) {
	meta := metadataSidecar{
		Title:      pub.Title,
		PMID:       pub.PMID,
		DOI:        pub.DOI,
		Journal:    pub.Journal,
		Year:       pub.Year,
		Source:     cand.Source,
		URL:        cand.URL,
		FileHash:   hash,
		FileSize:   size,
		Downloaded: time.Now().UTC(),
	}
	data, err := yaml.Marshal(meta)
	if err != nil {
		return
	}
	path := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".yaml"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		d.logger.Warn("writing metadata sidecar failed", "path", path, "error", err)
	}
}

// fetchWithRetries GETs one candidate, retrying transient failures with
// linear backoff. It returns the validated body bytes and the attempt
// number that succeeded.
func (d *Downloader) fetchWithRetries(ctx context.Context, key string, cand types.URLCandidate, result *types.DownloadResult) ([]byte, int, error) {
	attempts := d.cfg.PerURLRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		body, transient, err := d.fetchOnce(ctx, cand.URL)
		if err == nil {
			return body, attempt, nil
		}
		lastErr = err

		status := types.AttemptFailed
		if transient && attempt < attempts {
			status = types.AttemptRetry
		}
		d.record(ctx, result, types.DownloadAttempt{
			IdentifierKey: key,
			URL:           cand.URL,
			Source:        cand.Source,
			Status:        status,
			Error:         err.Error(),
			AttemptNumber: attempt,
		})

		if !transient || attempt == attempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * d.cfg.RetryDelay):
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	return nil, 0, lastErr
}

// fetchOnce returns the body bytes, whether a failure is retriable, and
// the failure itself.
func (d *Downloader) fetchOnce(ctx context.Context, url string) (body []byte, transient bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", "omics-oracle/1.0")

	resp, err := d.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d", resp.StatusCode)
		return nil, httputil.Retriable(resp.StatusCode), err
	}

	// One byte past the cap distinguishes "at limit" from "over limit".
	body, err = io.ReadAll(io.LimitReader(resp.Body, d.cfg.Validation.MaxSize+1))
	if err != nil {
		return nil, true, fmt.Errorf("reading body: %w", err)
	}
	if err := d.validate(body); err != nil {
		return nil, false, err
	}
	return body, false, nil
}

func (d *Downloader) validate(body []byte) error {
	if int64(len(body)) < d.cfg.Validation.MinSize {
		return errValidation{reason: fmt.Sprintf("%d bytes, below minimum %d", len(body), d.cfg.Validation.MinSize)}
	}
	if int64(len(body)) > d.cfg.Validation.MaxSize {
		return errValidation{reason: fmt.Sprintf("exceeds maximum %d bytes", d.cfg.Validation.MaxSize)}
	}
	if len(body) < len(pdfMagic) || string(body[:len(pdfMagic)]) != string(pdfMagic) {
		return errValidation{reason: "missing %PDF- header"}
	}
	return nil
}

// storePDF writes the validated bytes via temp-file-plus-rename, records
// the artifact, and appends the success row. Byte-identical content
// already stored for another publication is not written twice.
func (d *Downloader) storePDF(ctx context.Context, key, destDir, filename string, body []byte, cand types.URLCandidate, attempt int, result *types.DownloadResult) (string, string, int64, error) {
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])
	size := int64(len(body))
	finalPath := filepath.Join(destDir, filename)

	dedup, existingPath, err := d.store.RecordPDF(ctx, key, finalPath, hash, size, cand.Source)
	if err != nil {
		return "", "", 0, fmt.Errorf("recording pdf: %w", err)
	}
	if dedup {
		result.Deduplicated = true
		finalPath = existingPath
	} else {
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return "", "", 0, fmt.Errorf("creating %s: %w", destDir, err)
		}
		tmp, err := os.CreateTemp(destDir, filename+".tmp*")
		if err != nil {
			return "", "", 0, err
		}
		if _, err := tmp.Write(body); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", "", 0, err
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return "", "", 0, err
		}
		if err := os.Rename(tmp.Name(), finalPath); err != nil {
			os.Remove(tmp.Name())
			return "", "", 0, err
		}
	}

	d.record(ctx, result, types.DownloadAttempt{
		IdentifierKey: key,
		URL:           cand.URL,
		Source:        cand.Source,
		Status:        types.AttemptSuccess,
		AttemptNumber: attempt,
		FilePath:      finalPath,
		FileSize:      size,
	})
	return finalPath, hash, size, nil
}

// record appends to both the in-memory result and the durable history.
func (d *Downloader) record(ctx context.Context, result *types.DownloadResult, a types.DownloadAttempt) {
	a.At = time.Now().UTC()
	result.Attempts = append(result.Attempts, a)
	if err := d.store.AppendAttempt(ctx, a); err != nil {
		d.logger.Warn("recording download attempt failed", "key", a.IdentifierKey, "error", err)
	}
}
