package writer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWrite_CreatesPageAndSidecar(t *testing.T) {
	root := t.TempDir()
	w := New(root)

	meta := Metadata{
		URL:        "https://example.com/docs/",
		Title:      "Docs",
		Encoding:   "utf-8",
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
		Fields:     map[string]string{"description": "the docs"},
	}

	result, writeErr := w.Write("https://example.com/docs/", []byte("<html>hi</html>"), meta)
	if writeErr != nil {
		t.Fatalf("Write() error = %v", writeErr)
	}

	wantRel := filepath.Join("example.com", "docs", "index.html")
	if result.RelativePath != wantRel {
		t.Errorf("RelativePath = %q, want %q", result.RelativePath, wantRel)
	}
	wantMetaRel := filepath.Join("example.com", "docs", "index.meta.json")
	if result.MetaRelativePath != wantMetaRel {
		t.Errorf("MetaRelativePath = %q, want %q", result.MetaRelativePath, wantMetaRel)
	}

	body, err := os.ReadFile(filepath.Join(root, result.RelativePath))
	if err != nil {
		t.Fatalf("ReadFile(page) error = %v", err)
	}
	if string(body) != "<html>hi</html>" {
		t.Errorf("page body = %q", body)
	}

	metaBytes, err := os.ReadFile(filepath.Join(root, result.MetaRelativePath))
	if err != nil {
		t.Fatalf("ReadFile(meta) error = %v", err)
	}
	var decoded Metadata
	if err := json.Unmarshal(metaBytes, &decoded); err != nil {
		t.Fatalf("Unmarshal(meta) error = %v", err)
	}
	if decoded.Title != "Docs" || decoded.Fields["description"] != "the docs" {
		t.Errorf("decoded metadata = %+v", decoded)
	}
}

func TestWrite_ExtensionlessPathMirrorsAsDirectory(t *testing.T) {
	root := t.TempDir()
	w := New(root)

	result, writeErr := w.Write("https://example.com/a", []byte("x"), Metadata{})
	if writeErr != nil {
		t.Fatalf("Write() error = %v", writeErr)
	}
	want := filepath.Join("example.com", "a", "index.html")
	if result.RelativePath != want {
		t.Errorf("RelativePath = %q, want %q", result.RelativePath, want)
	}
}

func TestWrite_OverwritesExistingFileAtomically(t *testing.T) {
	root := t.TempDir()
	w := New(root)

	if _, writeErr := w.Write("https://example.com/", []byte("first"), Metadata{}); writeErr != nil {
		t.Fatalf("first Write() error = %v", writeErr)
	}
	result, writeErr := w.Write("https://example.com/", []byte("second"), Metadata{})
	if writeErr != nil {
		t.Fatalf("second Write() error = %v", writeErr)
	}

	body, err := os.ReadFile(filepath.Join(root, result.RelativePath))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(body) != "second" {
		t.Errorf("body = %q, want %q", body, "second")
	}

	entries, err := os.ReadDir(filepath.Join(root, "example.com"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, entry := range entries {
		if entry.Name() != "index.html" && entry.Name() != "index.meta.json" {
			t.Errorf("leftover temp file %q was not cleaned up", entry.Name())
		}
	}
}

func TestWrite_TraversalURLStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	w := New(root)

	// SafeFilename neutralizes ".." segments, so a traversal URL is not
	// rejected: it is written to a path that stays inside the root.
	result, writeErr := w.Write("https://example.com/../../etc/passwd", []byte("x"), Metadata{})
	if writeErr != nil {
		t.Fatalf("Write() error = %v", writeErr)
	}
	if filepath.IsAbs(result.RelativePath) {
		t.Errorf("RelativePath %q should be relative", result.RelativePath)
	}
	rel, err := filepath.Rel(root, filepath.Join(root, result.RelativePath))
	if err != nil || rel == ".." {
		t.Errorf("resolved path escaped root: %q", rel)
	}
}
