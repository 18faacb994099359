package corpus

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "  第二篇。 \n")
	writeFile(t, dir, "a.txt", "第一篇。")
	writeFile(t, dir, "empty.txt", "   \n")
	writeFile(t, dir, "notes.md", "# ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "sub.txt"), "c.txt", "nested")

	docs := Load(dir, discardLogger())
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d: %+v", len(docs), docs)
	}
	if docs[0].Filename != "a.txt" || docs[1].Filename != "b.txt" {
		t.Errorf("unexpected order: %s, %s", docs[0].Filename, docs[1].Filename)
	}
	if docs[1].Content != "第二篇。" {
		t.Errorf("content not trimmed: %q", docs[1].Content)
	}
	if docs[0].Path != filepath.Join(dir, "a.txt") {
		t.Errorf("Path = %q", docs[0].Path)
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	docs := Load(filepath.Join(t.TempDir(), "nope"), discardLogger())
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "甲乙丙。")
	first := Fingerprint(Load(dir, discardLogger()))
	if again := Fingerprint(Load(dir, discardLogger())); again != first {
		t.Fatal("fingerprint not stable across loads")
	}

	writeFile(t, dir, "a.txt", "甲乙丁。")
	if changed := Fingerprint(Load(dir, discardLogger())); changed == first {
		t.Error("content change not reflected in fingerprint")
	}

	writeFile(t, dir, "b.txt", "新文档。")
	if added := Fingerprint(Load(dir, discardLogger())); added == first {
		t.Error("added document not reflected in fingerprint")
	}
}
