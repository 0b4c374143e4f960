// Package source turns a dashboard Source declaration into a table.Source:
// it fetches the raw bytes (file, http, blob store) or runs a query (sqlite,
// postgres) and decodes the result into a header and string records.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"dashcore/internal/blob"
	"dashcore/pkg/dashboard"
	"dashcore/pkg/table"
)

// Scheme prefixes understood by the opener. Anything else is a file path.
const (
	SchemeBlob     = "blob://"
	SchemeSQLite   = "sqlite://"
	SchemePostgres = "postgres://"
	SchemePG       = "postgresql://"
)

// ErrNoBlobStore is returned for blob:// sources when no store is set.
var ErrNoBlobStore = errors.New("source: blob store not configured")

const defaultTimeout = 30 * time.Second

// Opener resolves sources. The zero value is not usable; call NewOpener.
type Opener struct {
	blobs   blob.Store
	client  *http.Client
	baseDir string
	logger  *zap.Logger
}

// Option configures an Opener.
type Option func(*Opener)

// WithBlobStore enables blob:// sources.
func WithBlobStore(s blob.Store) Option {
	return func(o *Opener) { o.blobs = s }
}

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opener) {
		if c != nil {
			o.client = c
		}
	}
}

// WithBaseDir resolves relative file paths against dir.
func WithBaseDir(dir string) Option {
	return func(o *Opener) { o.baseDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Opener) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOpener constructs an Opener.
func NewOpener(opts ...Option) *Opener {
	o := &Opener{
		client: &http.Client{Timeout: defaultTimeout},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open returns a table.Source reading src.
func (o *Opener) Open(src dashboard.Source) (table.Source, error) {
	if strings.TrimSpace(src.URL) == "" {
		return nil, errors.New("source: empty url")
	}
	switch format := src.ResolvedFormat(); format {
	case dashboard.FormatSQL:
		driver, dsn, err := sqlTarget(src.URL)
		if err != nil {
			return nil, err
		}
		return table.SourceFunc(func(ctx context.Context) (table.Raw, error) {
			return o.query(ctx, driver, dsn, src.Query)
		}), nil
	case dashboard.FormatCSV, dashboard.FormatXLSX:
		return table.SourceFunc(func(ctx context.Context) (table.Raw, error) {
			b, err := o.fetch(ctx, src.URL)
			if err != nil {
				return table.Raw{}, err
			}
			if format == dashboard.FormatXLSX {
				return DecodeXLSX(b, src.Sheet)
			}
			return DecodeCSV(b)
		}), nil
	default:
		return nil, fmt.Errorf("source: unsupported format %q", format)
	}
}

func (o *Opener) resolvePath(p string) string {
	p = strings.TrimPrefix(p, "file://")
	if o.baseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(o.baseDir, p)
}
