package cache

import (
	"path/filepath"
	"testing"

	"github.com/seclab-ucsb/turi-go/internal/ir"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	classes := []*ir.Class{
		{
			Name:       "com.example.A",
			SuperClass: "java.lang.Object",
			Attrs:      map[string]struct{}{},
			Methods: []*ir.Method{
				{ClassName: "com.example.A", Name: "m", Attrs: map[string]struct{}{}},
			},
		},
	}

	if err := c.Save("/app/path", "apk", "android-30", classes); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := c.Load("/app/path")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if len(got) != 1 || got[0].Name != "com.example.A" {
		t.Errorf("unexpected decoded classes: %+v", got)
	}
}

func TestLoad_Miss(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	_, ok, err := c.Load("/nope")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Errorf("expected cache miss")
	}
}

func TestInvalidate(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	classes := []*ir.Class{{Name: "X", Attrs: map[string]struct{}{}}}
	if err := c.Save("/p", "apk", "", classes); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := c.Invalidate("/p"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	_, ok, err := c.Load("/p")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Errorf("expected miss after invalidate")
	}
}
