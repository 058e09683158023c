package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"leaf.jpg", true},
		{"LEAF.JPEG", true},
		{"scan.webp", true},
		{"photo.tif", true},
		{"notes.txt", false},
		{"noext", false},
	}

	for _, tt := range tests {
		if got := IsImageFile(tt.name); got != tt.want {
			t.Errorf("IsImageFile(%q): expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestIsURL(t *testing.T) {
	if !IsURL("https://example.com/leaf.jpg") {
		t.Error("Expected https URL to be detected")
	}
	if IsURL("./leaf.jpg") {
		t.Error("Expected relative path not to be a URL")
	}
}

func TestEnsureDirAndFileExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if FileExists(dir) {
		t.Error("Expected directory not to count as a file")
	}

	file := filepath.Join(dir, "leaf.png")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(file) {
		t.Error("Expected file to exist")
	}
	if FileExists(filepath.Join(dir, "missing.png")) {
		t.Error("Expected missing file not to exist")
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KB"},
		{10 << 20, "10.0 MB"},
	}

	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.want {
			t.Errorf("FormatFileSize(%d): expected %s, got %s", tt.size, tt.want, got)
		}
	}
}
