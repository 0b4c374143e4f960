package blob

import (
	"context"
	"errors"
	"testing"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := Open(context.Background(), Config{Driver: DriverFilesystem, FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
		"s3":     NewMockS3ForTests(),
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			info, err := PutBytes(ctx, s, "exports/a.csv", "text/csv", []byte("x,y\n1,2\n"), map[string]string{"dashboard": "ridership"})
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Size != 8 {
				t.Fatalf("size = %d", info.Size)
			}
			if _, err := PutBytes(ctx, s, "exports/a.csv", "text/csv", []byte("again"), nil); err == nil {
				t.Fatalf("expected duplicate put to fail")
			}
			if _, err := PutBytes(ctx, s, "exports/b.json", "application/json", []byte("{}"), nil); err != nil {
				t.Fatalf("put b: %v", err)
			}
			got, body, err := ReadAll(ctx, s, "exports/a.csv")
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(body) != "x,y\n1,2\n" || got.ContentType != "text/csv" {
				t.Fatalf("unexpected blob %q %+v", body, got)
			}
			list, err := s.List(ctx, "exports/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 2 || list[0].Key != "exports/a.csv" || list[1].Key != "exports/b.json" {
				t.Fatalf("unexpected list %+v", list)
			}
			if _, err := s.Head(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			ok, err := s.Delete(ctx, "exports/a.csv")
			if err != nil || !ok {
				t.Fatalf("delete: %v %v", ok, err)
			}
			ok, err = s.Delete(ctx, "exports/a.csv")
			if err != nil || ok {
				t.Fatalf("second delete: %v %v", ok, err)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenS3RequiresBucket(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPresign(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	if _, err := s.PresignURL(ctx, "k", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("memory presign: %v", err)
	}
	fsStore, err := Open(ctx, Config{FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	u, err := fsStore.PresignURL(ctx, "exports/a.png", SignedURLOptions{})
	if err != nil || u != "http://local.blob/exports/a.png" {
		t.Fatalf("fs presign = %q %v", u, err)
	}
	if _, err := fsStore.PresignURL(ctx, "k", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("fs presign put: %v", err)
	}
}
