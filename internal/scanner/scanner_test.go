package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeTree(t *testing.T, root string, files []string) {
	t.Helper()
	for _, name := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("Failed to create test directory: %v", err)
		}
		if err := os.WriteFile(path, []byte("test"), 0o600); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}
}

func inputs(t *testing.T, s *Scanner) []string {
	t.Helper()
	reqs, err := s.ScanDirectory()
	if err != nil {
		t.Fatalf("Failed to scan directory: %v", err)
	}
	var out []string
	for _, r := range reqs {
		rel, err := filepath.Rel(s.RootPath, r.InputPath)
		if err != nil {
			t.Fatalf("Failed to compute relative path: %v", err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

func TestScanDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	srcDir := filepath.Join(tmpDir, "media")
	writeTree(t, srcDir, []string{
		"clip.MP4",
		"song.wav",
		"notes.txt",
		"albums/track.flac",
		"albums/cover.png",
		".cache/thumb.png",
		"script.sh",
		"archive.zip",
	})

	got := inputs(t, New(srcDir, "", ".pdf"))
	want := []string{"albums/cover.png", "albums/track.flac", "clip.MP4", "notes.txt", "song.wav"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestScanDirectoryNonRecursive(t *testing.T) {
	srcDir := t.TempDir()
	writeTree(t, srcDir, []string{"top.png", "nested/deep.png"})

	s := New(srcDir, "", "")
	s.Recursive = false
	got := inputs(t, s)
	if len(got) != 1 || got[0] != "top.png" {
		t.Errorf("Expected only top.png, got %v", got)
	}
}

func TestScanDirectoryMirrorsOutputTree(t *testing.T) {
	tmpDir := t.TempDir()
	srcDir := filepath.Join(tmpDir, "in")
	outDir := filepath.Join(tmpDir, "out")
	writeTree(t, srcDir, []string{"a/b/photo.png", "top.jpg"})

	reqs, err := New(srcDir, outDir, "pdf").ScanDirectory()
	if err != nil {
		t.Fatalf("Failed to scan directory: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(reqs))
	}

	byName := make(map[string]string)
	for _, r := range reqs {
		if r.TargetExt != ".pdf" {
			t.Errorf("Expected normalized target .pdf, got %q", r.TargetExt)
		}
		byName[filepath.Base(r.InputPath)] = r.OutputDir
	}
	if byName["photo.png"] != filepath.Join(outDir, "a", "b") {
		t.Errorf("Expected mirrored output dir, got %s", byName["photo.png"])
	}
	if byName["top.jpg"] != outDir {
		t.Errorf("Expected output base for top-level file, got %s", byName["top.jpg"])
	}
}

func TestScanDirectorySkipsOutputBaseInsideRoot(t *testing.T) {
	srcDir := t.TempDir()
	outDir := filepath.Join(srcDir, "converted")
	writeTree(t, srcDir, []string{"photo.png", "converted/photo.pdf"})

	got := inputs(t, New(srcDir, outDir, ".pdf"))
	if len(got) != 1 || got[0] != "photo.png" {
		t.Errorf("Expected the output tree to be skipped, got %v", got)
	}
}

func TestScanDirectorySkipExisting(t *testing.T) {
	srcDir := t.TempDir()
	writeTree(t, srcDir, []string{"done.png", "done.pdf", "todo.png"})

	s := New(srcDir, "", ".pdf")
	s.SkipExisting = true
	got := inputs(t, s)
	// done.pdf would become done_converted.pdf, which does not exist yet
	want := []string{"done.pdf", "todo.png"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestScanDirectoryMissingRoot(t *testing.T) {
	reqs, err := New(filepath.Join(t.TempDir(), "missing"), "", "").ScanDirectory()
	if err != nil {
		t.Fatalf("Expected a missing root to be logged, got error %v", err)
	}
	if len(reqs) != 0 {
		t.Errorf("Expected no requests, got %d", len(reqs))
	}
}
