package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileLimited(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		content     string
		maxSize     int64
		wantErr     bool
		errContains string
	}{
		{
			name:    "read small file",
			content: "original_commit:abc123",
			maxSize: 100,
		},
		{
			name:    "read file at exact limit",
			content: "12345",
			maxSize: 5,
		},
		{
			name:        "file exceeds limit",
			content:     "this content is too long",
			maxSize:     10,
			wantErr:     true,
			errContains: "exceeds maximum",
		},
		{
			name:    "empty file",
			content: "",
			maxSize: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			filePath := filepath.Join(t.TempDir(), "state")
			if err := os.WriteFile(filePath, []byte(tt.content), 0600); err != nil {
				t.Fatalf("failed to create test file: %v", err)
			}

			data, err := ReadFileLimited(filePath, tt.maxSize)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				} else if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(data) != tt.content {
				t.Errorf("got %q, want %q", string(data), tt.content)
			}
		})
	}
}

func TestReadFileLimitedMissing(t *testing.T) {
	t.Parallel()

	_, err := ReadFileLimited(filepath.Join(t.TempDir(), "absent"), 100)
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestAtomicWriteFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "state")

	if err := AtomicWriteFile(path, []byte("last_step:build\n"), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(data) != "last_step:build\n" {
		t.Errorf("got %q", string(data))
	}

	// Overwrite replaces the whole content.
	if err := AtomicWriteFile(path, []byte("last_step:version\n"), 0600); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "last_step:version\n" {
		t.Errorf("got %q after overwrite", string(data))
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 file in dir, found %d", len(entries))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}
