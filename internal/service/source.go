package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joeblew999/plat-overlay/internal/catalog"
)

// SourceFile is a local GeoJSON file a catalog entry can point at with a
// relative path.
type SourceFile struct {
	Name      string `json:"name" doc:"File name relative to the data directory" example:"gas_lp.geojson"`
	Size      string `json:"size" doc:"Human readable size" example:"1.2 MB"`
	InCatalog string `json:"inCatalog,omitempty" doc:"Layer whose URL names this file"`
}

// SourceService lists the GeoJSON files in the data directory.
type SourceService struct {
	dataDir string
	cat     catalog.Catalog
}

// NewSourceService creates a source service for dataDir.
func NewSourceService(dataDir string, cat catalog.Catalog) *SourceService {
	return &SourceService{dataDir: dataDir, cat: cat}
}

// List returns every .geojson and .json file, sorted by name. A missing
// directory is an empty list.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	used := make(map[string]string, len(s.cat))
	for _, d := range s.cat {
		p := strings.TrimPrefix(d.URL, "file://")
		if !filepath.IsAbs(p) {
			p = filepath.Join(s.dataDir, p)
		}
		used[filepath.Clean(p)] = d.Name
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".geojson", ".json":
		default:
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, SourceFile{
			Name:      entry.Name(),
			Size:      formatSize(info.Size()),
			InCatalog: used[filepath.Clean(filepath.Join(s.dataDir, entry.Name()))],
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
