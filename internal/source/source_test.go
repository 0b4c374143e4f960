package source

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"dashcore/internal/blob"
	"dashcore/pkg/dashboard"
	"dashcore/pkg/table"
)

const ridershipCSV = "\xEF\xBB\xBFDate, Subways,Buses\n2020-03-01,\"1,200\",800\n2020-03-02,1100,750\n"

func read(t *testing.T, o *Opener, src dashboard.Source) table.Raw {
	t.Helper()
	s, err := o.Open(src)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	raw, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return raw
}

var wantRaw = table.Raw{
	Header: []string{"Date", "Subways", "Buses"},
	Records: [][]string{
		{"2020-03-01", "1,200", "800"},
		{"2020-03-02", "1100", "750"},
	},
}

func TestFileSourceWithBaseDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mta.csv"), []byte(ridershipCSV), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := read(t, NewOpener(WithBaseDir(dir)), dashboard.Source{URL: "mta.csv"})
	if diff := cmp.Diff(wantRaw, got); diff != "" {
		t.Fatalf("raw mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mta.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(ridershipCSV))
	}))
	defer srv.Close()

	o := NewOpener(WithHTTPClient(srv.Client()))
	got := read(t, o, dashboard.Source{URL: srv.URL + "/mta.csv"})
	if diff := cmp.Diff(wantRaw, got); diff != "" {
		t.Fatalf("raw mismatch (-want +got):\n%s", diff)
	}

	s, err := o.Open(dashboard.Source{URL: srv.URL + "/missing.csv"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Read(context.Background()); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestBlobSource(t *testing.T) {
	store := blob.NewMemory()
	if _, err := blob.PutBytes(context.Background(), store, "datasets/mta.csv", "text/csv", []byte(ridershipCSV), nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	got := read(t, NewOpener(WithBlobStore(store)), dashboard.Source{URL: "blob://datasets/mta.csv"})
	if diff := cmp.Diff(wantRaw, got); diff != "" {
		t.Fatalf("raw mismatch (-want +got):\n%s", diff)
	}

	s, _ := NewOpener().Open(dashboard.Source{URL: "blob://datasets/mta.csv"})
	if _, err := s.Read(context.Background()); !errors.Is(err, ErrNoBlobStore) {
		t.Fatalf("expected ErrNoBlobStore, got %v", err)
	}
}

func TestSQLiteSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	stmts := []string{
		`CREATE TABLE grants (gender TEXT, field TEXT, amount REAL, year INTEGER)`,
		`INSERT INTO grants VALUES ('Female', 'Biology', 1500.5, 2021)`,
		`INSERT INTO grants VALUES ('Male', 'Physics', 900, 2022)`,
		`INSERT INTO grants VALUES (NULL, 'Physics', 100, 2022)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	_ = db.Close()

	got := read(t, NewOpener(), dashboard.Source{URL: "sqlite://" + path, Query: "SELECT gender, field, amount, year FROM grants ORDER BY rowid"})
	want := table.Raw{
		Header: []string{"gender", "field", "amount", "year"},
		Records: [][]string{
			{"Female", "Biology", "1500.5", "2021"},
			{"Male", "Physics", "900", "2022"},
			{"", "Physics", "100", "2022"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("raw mismatch (-want +got):\n%s", diff)
	}
}

func TestXLSXSource(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Occupation", "Estimate", "Note"},
		{"Nurse", 1200, "ok"},
		{},
		{"Librarian", 900},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "jobs.xlsx"), buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	got := read(t, NewOpener(WithBaseDir(dir)), dashboard.Source{URL: "jobs.xlsx"})
	want := table.Raw{
		Header: []string{"Occupation", "Estimate", "Note"},
		Records: [][]string{
			{"Nurse", "1200", "ok"},
			{"Librarian", "900", ""},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("raw mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLTarget(t *testing.T) {
	cases := []struct {
		url, driver, dsn string
		ok               bool
	}{
		{"sqlite:///tmp/a.db", "sqlite", "/tmp/a.db", true},
		{"sqlite://", "", "", false},
		{"postgres://u:p@localhost/db", "pgx", "postgres://u:p@localhost/db", true},
		{"postgresql://localhost/db", "pgx", "postgresql://localhost/db", true},
		{"mysql://x", "", "", false},
	}
	for _, c := range cases {
		driver, dsn, err := sqlTarget(c.url)
		if (err == nil) != c.ok || driver != c.driver || dsn != c.dsn {
			t.Errorf("sqlTarget(%q) = %q %q %v", c.url, driver, dsn, err)
		}
	}
}

func TestDecodeCSVErrors(t *testing.T) {
	if _, err := DecodeCSV(nil); err == nil {
		t.Fatalf("expected missing header error")
	}
	if _, err := DecodeCSV([]byte("a,\"b\n1,2")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadFromSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mta.csv"), []byte(ridershipCSV), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := NewOpener(WithBaseDir(dir)).Open(dashboard.Source{URL: "mta.csv"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ds, err := table.Load(context.Background(), src, "mta", []table.ColumnSpec{{Name: "Date", Kind: table.KindDate, Required: true}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Rows() != 2 {
		t.Fatalf("rows = %d", ds.Rows())
	}
}
