package fetch

import (
    "context"
    "net/http"
    "net/http/httptest"
    "os"
    "testing"
)

func TestResolveLocalForms(t *testing.T) {
    r := NewResolver(nil)
    ctx := context.Background()
    dest := t.TempDir()

    tests := []struct {
        name string
        ref  string
        want string
    }{
        {"plain path", "/data/in.pdf", "/data/in.pdf"},
        {"file scheme", "file:///data/in.pdf", "/data/in.pdf"},
        {"fragment stripped", "/data/in.pdf#page=3", "/data/in.pdf"},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            got, err := r.Resolve(ctx, tt.ref, dest)
            if err != nil {
                t.Fatalf("Resolve: %v", err)
            }
            if got != tt.want {
                t.Errorf("got %q, want %q", got, tt.want)
            }
        })
    }
}

func TestResolveHTTP(t *testing.T) {
    payload := []byte("%PDF-1.4\nremote\n%%EOF\n")
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Write(payload)
    }))
    defer srv.Close()

    r := NewResolver(srv.Client())
    dest := t.TempDir()
    local, err := r.Resolve(context.Background(), srv.URL+"/doc.pdf#page=2", dest)
    if err != nil {
        t.Fatalf("Resolve: %v", err)
    }
    got, err := os.ReadFile(local)
    if err != nil {
        t.Fatalf("reading download: %v", err)
    }
    if string(got) != string(payload) {
        t.Error("downloaded bytes differ from served bytes")
    }
}

func TestResolveHTTPError(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        http.NotFound(w, r)
    }))
    defer srv.Close()

    r := NewResolver(srv.Client())
    if _, err := r.Resolve(context.Background(), srv.URL+"/missing.pdf", t.TempDir()); err == nil {
        t.Error("expected an error for a 404 reference")
    }
}

func TestResolveBadS3URL(t *testing.T) {
    r := NewResolver(nil)
    if _, err := r.Resolve(context.Background(), "s3://bucket-without-key", t.TempDir()); err == nil {
        t.Error("expected an error for an s3 url without a key")
    }
}
