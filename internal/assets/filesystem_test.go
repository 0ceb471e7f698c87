package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeAsset creates {base}/{dir}/{file} with content.
func writeAsset(t *testing.T, base, dir, file, content string) {
	t.Helper()

	full := filepath.Join(base, dir)
	if err := os.MkdirAll(full, 0755); err != nil {
		t.Fatalf("failed to create %s dir: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(full, file), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", file, err)
	}
}

func TestNewFilesystemLoader(t *testing.T) {
	t.Parallel()

	t.Run("valid directory", func(t *testing.T) {
		t.Parallel()

		loader, err := NewFilesystemLoader(t.TempDir())
		if err != nil {
			t.Fatalf("NewFilesystemLoader() error = %v", err)
		}
		if loader == nil {
			t.Fatal("NewFilesystemLoader() returned nil")
		}
	})

	t.Run("empty path returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewFilesystemLoader("")
		if !errors.Is(err, ErrInvalidBasePath) {
			t.Errorf("NewFilesystemLoader(\"\") error = %v, want ErrInvalidBasePath", err)
		}
	})

	t.Run("nonexistent directory returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewFilesystemLoader("/nonexistent/path/abc123xyz")
		if !errors.Is(err, ErrInvalidBasePath) {
			t.Errorf("NewFilesystemLoader() error = %v, want ErrInvalidBasePath", err)
		}
	})

	t.Run("file instead of directory returns error", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "file.txt")
		if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		_, err := NewFilesystemLoader(filePath)
		if !errors.Is(err, ErrInvalidBasePath) {
			t.Errorf("NewFilesystemLoader() error = %v, want ErrInvalidBasePath", err)
		}
	})
}

func TestFilesystemLoader_Load(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	writeAsset(t, tmpDir, "styles", "custom.css", "body { color: red; }")
	writeAsset(t, tmpDir, "surfaces", "offline.html", "<script>function renderFormulasBatch(){}</script>")

	loader, err := NewFilesystemLoader(tmpDir)
	if err != nil {
		t.Fatalf("NewFilesystemLoader() error = %v", err)
	}

	tests := []struct {
		name    string
		load    func(string) (string, error)
		asset   string
		want    string
		wantErr error
	}{
		{name: "style", load: loader.LoadStyle, asset: "custom", want: "body { color: red; }"},
		{name: "surface", load: loader.LoadSurface, asset: "offline", want: "<script>function renderFormulasBatch(){}</script>"},
		{name: "missing style", load: loader.LoadStyle, asset: "other", wantErr: ErrStyleNotFound},
		{name: "missing surface", load: loader.LoadSurface, asset: "mathjax", wantErr: ErrSurfaceNotFound},
		{name: "invalid name", load: loader.LoadSurface, asset: "../offline", wantErr: ErrInvalidAssetName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.load(tt.asset)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("load(%q) error = %v, want %v", tt.asset, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("load(%q) unexpected error: %v", tt.asset, err)
			}
			if got != tt.want {
				t.Errorf("load(%q) = %q, want %q", tt.asset, got, tt.want)
			}
		})
	}
}

func TestFilesystemLoader_PathContainment(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	surfacesDir := filepath.Join(tmpDir, "surfaces")
	if err := os.MkdirAll(surfacesDir, 0755); err != nil {
		t.Fatalf("failed to create surfaces dir: %v", err)
	}

	secretFile := filepath.Join(t.TempDir(), "secret.html")
	if err := os.WriteFile(secretFile, []byte("secret content"), 0644); err != nil {
		t.Fatalf("failed to write secret file: %v", err)
	}
	if err := os.Symlink(secretFile, filepath.Join(surfacesDir, "evil.html")); err != nil {
		t.Skipf("symlink creation not supported: %v", err)
	}

	loader, err := NewFilesystemLoader(tmpDir)
	if err != nil {
		t.Fatalf("NewFilesystemLoader() error = %v", err)
	}

	_, err = loader.LoadSurface("evil")
	if !errors.Is(err, ErrPathTraversal) {
		t.Errorf("LoadSurface() with symlink escape error = %v, want ErrPathTraversal", err)
	}
}
