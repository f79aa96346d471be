package compress

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// Discover lists files under dir with the source extension, skipping
// AppleDouble "._" companions, in lexicographic order.
func Discover(dir string, recursive bool, sourceExt string) ([]string, error) {
	suffix := "." + strings.TrimPrefix(strings.ToLower(sourceExt), ".")
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "._") || !strings.HasSuffix(strings.ToLower(name), suffix) {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		found = append(found, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(found)
	return found, nil
}

// TargetPath maps a discovered source to its output path. The source's
// directory relative to root is mirrored under targetDir.
func TargetPath(source, root, targetDir, targetExt string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	name := base + "." + strings.TrimPrefix(targetExt, ".")
	rel, err := filepath.Rel(root, filepath.Dir(source))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Join(targetDir, name)
	}
	return filepath.Join(targetDir, rel, name)
}
