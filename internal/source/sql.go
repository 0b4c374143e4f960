package source

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"dashcore/pkg/table"
)

func sqlTarget(url string) (driver, dsn string, err error) {
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, SchemeSQLite):
		dsn = url[len(SchemeSQLite):]
		if dsn == "" {
			return "", "", fmt.Errorf("source: sqlite url %q has no path", url)
		}
		return "sqlite", dsn, nil
	case strings.HasPrefix(lower, SchemePostgres), strings.HasPrefix(lower, SchemePG):
		return "pgx", url, nil
	default:
		return "", "", fmt.Errorf("source: %q is not a sql url", url)
	}
}

// query runs q and renders every cell as text so the loader can coerce it
// with the declared schema.
func (o *Opener) query(ctx context.Context, driver, dsn, q string) (table.Raw, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return table.Raw{}, fmt.Errorf("source: open %s: %w", driver, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return table.Raw{}, fmt.Errorf("source: query %s: %w", driver, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return table.Raw{}, err
	}
	raw := table.Raw{Header: header}
	cells := make([]any, len(header))
	ptrs := make([]any, len(header))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return table.Raw{}, fmt.Errorf("source: scan: %w", err)
		}
		rec := make([]string, len(cells))
		for i, c := range cells {
			rec[i] = text(c)
		}
		raw.Records = append(raw.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return table.Raw{}, fmt.Errorf("source: rows: %w", err)
	}
	o.logger.Debug("source queried", zap.String("driver", driver), zap.Int("rows", len(raw.Records)))
	return raw, nil
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
