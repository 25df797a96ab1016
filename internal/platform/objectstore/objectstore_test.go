package objectstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		base, bucket, key, want string
	}{
		{"https://cdn.example.com", "medical-reports", "reports/p1/a.pdf", "https://cdn.example.com/medical-reports/reports/p1/a.pdf"},
		{"https://cdn.example.com/", "/medical-reports/", "/reports/a.pdf", "https://cdn.example.com/medical-reports/reports/a.pdf"},
	}
	for _, tt := range tests {
		if got := PublicURL(tt.base, tt.bucket, tt.key); got != tt.want {
			t.Errorf("PublicURL() = %q, want %q", got, tt.want)
		}
	}
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("http://localhost:8000/files", "medical-reports", 1024)

	obj, err := store.Put(ctx, "reports/p1/scan.pdf", "application/pdf", strings.NewReader("%PDF-1.4"), 8)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if obj.Size != 8 || obj.SHA256 == "" {
		t.Errorf("unexpected object %+v", obj)
	}

	rc, meta, err := store.Get(ctx, "reports/p1/scan.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.4" || meta.ContentType != "application/pdf" {
		t.Errorf("unexpected content %q / %+v", data, meta)
	}

	if got := store.URL("reports/p1/scan.pdf"); got != "http://localhost:8000/files/medical-reports/reports/p1/scan.pdf" {
		t.Errorf("URL() = %q", got)
	}

	if err := store.Delete(ctx, "reports/p1/scan.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := store.Get(ctx, "reports/p1/scan.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "reports/p1/scan.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStore_Limits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("http://x", "b", 4)

	if _, err := store.Put(ctx, "", "text/plain", strings.NewReader("a"), 1); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if _, err := store.Put(ctx, "k", "text/plain", strings.NewReader("12345"), 5); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expected nothing stored, got %d", store.Len())
	}
}
