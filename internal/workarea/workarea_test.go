package workarea

import (
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"
)

func TestAcquireRelease(t *testing.T) {
    root := t.TempDir()
    m, err := NewManager(root)
    if err != nil {
        t.Fatalf("NewManager: %v", err)
    }

    area, err := m.Acquire()
    if err != nil {
        t.Fatalf("Acquire: %v", err)
    }
    if !strings.HasPrefix(filepath.Base(area.Path()), dirPrefix) {
        t.Errorf("area dir %q missing %q prefix", area.Path(), dirPrefix)
    }
    info, err := os.Stat(area.Path())
    if err != nil {
        t.Fatalf("Stat: %v", err)
    }
    if !info.IsDir() {
        t.Fatal("area path is not a directory")
    }

    // Files created inside the area disappear with it.
    if err := os.WriteFile(area.File("x.pdf"), []byte("data"), 0o600); err != nil {
        t.Fatalf("WriteFile: %v", err)
    }
    area.Release()
    if _, err := os.Stat(area.Path()); !os.IsNotExist(err) {
        t.Errorf("area still present after Release: %v", err)
    }
    area.Release() // idempotent
}

func TestAcquireIsolation(t *testing.T) {
    m, err := NewManager(t.TempDir())
    if err != nil {
        t.Fatalf("NewManager: %v", err)
    }
    a, err := m.Acquire()
    if err != nil {
        t.Fatalf("Acquire: %v", err)
    }
    defer a.Release()
    b, err := m.Acquire()
    if err != nil {
        t.Fatalf("Acquire: %v", err)
    }
    defer b.Release()
    if a.Path() == b.Path() {
        t.Error("two acquisitions share a directory")
    }
}

func TestNewFileUnique(t *testing.T) {
    m, err := NewManager(t.TempDir())
    if err != nil {
        t.Fatalf("NewManager: %v", err)
    }
    area, err := m.Acquire()
    if err != nil {
        t.Fatalf("Acquire: %v", err)
    }
    defer area.Release()

    p1 := area.NewFile("part", ".pdf")
    p2 := area.NewFile("part", ".pdf")
    if p1 == p2 {
        t.Error("NewFile returned the same path twice")
    }
    if !strings.HasPrefix(p1, area.Path()) || !strings.HasSuffix(p1, ".pdf") {
        t.Errorf("unexpected path %q", p1)
    }
}

func TestCleanupStale(t *testing.T) {
    root := t.TempDir()
    m, err := NewManager(root)
    if err != nil {
        t.Fatalf("NewManager: %v", err)
    }

    stale, err := m.Acquire()
    if err != nil {
        t.Fatalf("Acquire: %v", err)
    }
    fresh, err := m.Acquire()
    if err != nil {
        t.Fatalf("Acquire: %v", err)
    }
    // A directory outside the naming scheme is never touched, however old.
    other := filepath.Join(root, "unrelated")
    if err := os.Mkdir(other, 0o700); err != nil {
        t.Fatalf("Mkdir: %v", err)
    }

    old := time.Now().Add(-2 * time.Hour)
    if err := os.Chtimes(stale.Path(), old, old); err != nil {
        t.Fatalf("Chtimes: %v", err)
    }
    if err := os.Chtimes(other, old, old); err != nil {
        t.Fatalf("Chtimes: %v", err)
    }

    m.CleanupStale(time.Hour)

    if _, err := os.Stat(stale.Path()); !os.IsNotExist(err) {
        t.Error("stale area survived cleanup")
    }
    if _, err := os.Stat(fresh.Path()); err != nil {
        t.Errorf("fresh area removed by cleanup: %v", err)
    }
    if _, err := os.Stat(other); err != nil {
        t.Errorf("unrelated directory removed by cleanup: %v", err)
    }
    fresh.Release()
}
