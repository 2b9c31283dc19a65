package bundle

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// copyAssets copies the contents of every copy block into outDir, unmodified
func copyAssets(cfg *Config, outDir string) error {
	for _, c := range cfg.Copy {
		from := cfg.resolve(c.From)
		to := filepath.Join(outDir, c.To)
		if err := copyTree(from, to); err != nil {
			return errors.Wrapf(err, "could not copy %s", c.From)
		}
		bundleLogger.Debug("copied assets", "from", from, "to", to)
	}
	return nil
}

// copyTree copies the directory from into to. If from is a single file, it
// is copied into to under the same name.
func copyTree(from, to string) error {
	stat, err := os.Stat(from)
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return copyFile(from, filepath.Join(to, filepath.Base(from)))
	}
	return filepath.WalkDir(from, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		target := filepath.Join(to, rel)
		if d.IsDir() {
			return os.MkdirAll(target, os.ModePerm)
		}
		return copyFile(path, target)
	})
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	stat, err := src.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to), os.ModePerm); err != nil {
		return err
	}
	dst, err := os.OpenFile(to, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, stat.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
