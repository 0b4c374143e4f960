package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"dashcore/internal/blob"
)

// maxBody bounds remote downloads.
const maxBody = 256 << 20

func (o *Opener) fetch(ctx context.Context, url string) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		b, err = o.fetchHTTP(ctx, url)
	case strings.HasPrefix(lower, SchemeBlob):
		b, err = o.fetchBlob(ctx, url[len(SchemeBlob):])
	default:
		if err = ctx.Err(); err == nil {
			b, err = os.ReadFile(o.resolvePath(url))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("source: fetch %s: %w", url, err)
	}
	o.logger.Debug("source fetched", zap.String("url", url), zap.Int("bytes", len(b)))
	return b, nil
}

func (o *Opener) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxBody {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBody)
	}
	return b, nil
}

func (o *Opener) fetchBlob(ctx context.Context, key string) ([]byte, error) {
	if o.blobs == nil {
		return nil, ErrNoBlobStore
	}
	_, b, err := blob.ReadAll(ctx, o.blobs, key)
	return b, err
}
