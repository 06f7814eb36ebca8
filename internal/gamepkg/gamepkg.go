// internal/gamepkg/gamepkg.go
//
// Package gamepkg handles the on-disk shape of uploaded game packages: ZIP
// extraction and repackaging, config.json validation, and the layout check
// every package must satisfy before it is installed under
// <storage>/<ownerId>/<gameName>/<version>/.
package gamepkg

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config mirrors a package's config.json. Name, Version, Description and
// Command must all be present and non-empty.
type Config struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Command     string `json:"command"`
}

// Unzip extracts the archive into dest, refusing entries that would escape
// the destination directory.
func Unzip(zipPath, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("invalid zip archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(dest, filepath.Clean(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("zip entry escapes destination: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := f.Open()
		if err != nil {
			return err
		}
		dst, err := os.Create(target)
		if err != nil {
			src.Close()
			return err
		}
		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// DetectRoot finds the directory holding the package contents. If
// config.json is not at the top and exactly one real directory exists
// (system litter like __MACOSX ignored), the package was zipped with a
// wrapping folder and that folder is the root.
func DetectRoot(dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err == nil {
		return dir, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var candidates []os.DirEntry
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "__") {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 1 && candidates[0].IsDir() {
		return filepath.Join(dir, candidates[0].Name()), nil
	}
	return dir, nil
}

// LoadConfig reads and validates the package's config.json.
func LoadConfig(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("'config.json' missing from package root")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("'config.json' is not valid JSON")
	}

	missing := []string{}
	for field, value := range map[string]string{
		"name":        cfg.Name,
		"version":     cfg.Version,
		"description": cfg.Description,
		"command":     cfg.Command,
	} {
		if value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config fields missing or empty: %s", strings.Join(missing, ","))
	}
	return &cfg, nil
}

// CheckLayout validates the required package hierarchy:
// client/client_main.py and server/server_main.py.
func CheckLayout(root string) error {
	checks := []struct {
		path string
		dir  bool
	}{
		{"client", true},
		{filepath.Join("client", "client_main.py"), false},
		{"server", true},
		{filepath.Join("server", "server_main.py"), false},
	}
	for _, c := range checks {
		info, err := os.Stat(filepath.Join(root, c.path))
		if err != nil || info.IsDir() != c.dir {
			return fmt.Errorf("'%s' missing from package", filepath.ToSlash(c.path))
		}
	}
	return nil
}

// ZipDir archives dir (its contents, relative) into outPath.
func ZipDir(dir, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	w := zip.NewWriter(out)
	defer w.Close()

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			_, err := w.Create(filepath.ToSlash(rel) + "/")
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		entry, err := w.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		_, err = io.Copy(entry, f)
		return err
	})
}

// downloadParts is what a player download contains: the client tree and
// the dependency manifests. The server tree never leaves the host.
var downloadParts = []string{"client", "config.json", "pyproject.toml", "uv.lock"}

// StageDownload copies the downloadable subset of an installed version
// directory into stagingDir. Missing optional manifests are skipped;
// a missing client tree or config.json is an error.
func StageDownload(versionDir, stagingDir string) error {
	for _, part := range downloadParts {
		src := filepath.Join(versionDir, part)
		info, err := os.Stat(src)
		if err != nil {
			if part == "client" || part == "config.json" {
				return fmt.Errorf("'%s' missing from installed game", part)
			}
			continue
		}
		dst := filepath.Join(stagingDir, part)
		if info.IsDir() {
			if err := copyTree(src, dst); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
