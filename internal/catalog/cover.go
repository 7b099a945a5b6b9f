// file: internal/catalog/cover.go
// version: 2.0.0
// guid: 4efaa7b8-e29a-47f3-84f7-39b46bfc9a01

package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

const maxCoverBytes = 10 << 20

// CoverFetcher downloads album art referenced by CandidateTrack.CoverArtRef.
type CoverFetcher struct {
	client *http.Client
}

// NewCoverFetcher returns a fetcher with a 30 second timeout. A nil client
// uses a default one.
func NewCoverFetcher(client *http.Client) *CoverFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &CoverFetcher{client: client}
}

// FetchCover downloads the image at coverURL. Only image/* responses are
// accepted and bodies larger than 10 MiB are rejected.
func (f *CoverFetcher) FetchCover(ctx context.Context, coverURL string) (*models.Picture, error) {
	if coverURL == "" {
		return nil, fmt.Errorf("empty cover URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build cover request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cover download returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("unexpected content type: %s", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read cover: %w", err)
	}
	if len(data) > maxCoverBytes {
		return nil, fmt.Errorf("cover exceeds %d bytes", maxCoverBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("cover download was empty")
	}

	return &models.Picture{
		MIMEType:    mimeFromContentType(contentType),
		Description: "Cover",
		Data:        data,
	}, nil
}

func mimeFromContentType(ct string) string {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "png"):
		return "image/png"
	case strings.Contains(ct, "gif"):
		return "image/gif"
	case strings.Contains(ct, "webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
