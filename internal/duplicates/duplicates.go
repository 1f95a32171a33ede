// Package duplicates detects documents that share a basename.
package duplicates

import (
	"path"

	"golang.org/x/text/cases"

	"github.com/starford/ansuz/internal/models"
)

// Detect groups paths by case-insensitive basename and returns every group
// with more than one member. Groups follow the first-seen order of their
// basename; paths keep their input order.
func Detect(paths []string) []models.DuplicateGroup {
	fold := cases.Fold()

	var order []string
	groups := make(map[string]*models.DuplicateGroup)
	for _, p := range paths {
		base := path.Base(p)
		key := fold.String(base)
		g, ok := groups[key]
		if !ok {
			g = &models.DuplicateGroup{Basename: base}
			groups[key] = g
			order = append(order, key)
		}
		g.Paths = append(g.Paths, p)
	}

	var out []models.DuplicateGroup
	for _, key := range order {
		g := groups[key]
		if len(g.Paths) < 2 {
			continue
		}
		g.Count = len(g.Paths)
		out = append(out, *g)
	}
	return out
}
