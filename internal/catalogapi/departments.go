package catalogapi

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/Fallstop/super-tracker-nz/internal/util"

	"go.uber.org/zap"
)

// ListDepartments probes the root listing for its department facets and
// returns their slugs in upstream order.
func (c *Client) ListDepartments(ctx context.Context) ([]string, error) {
	ctx, span := util.StartSpan(ctx, "CatalogClient.ListDepartments")
	defer span.End()

	resp, err := c.FetchPage(ctx, "", 1, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}

	slugs := DepartmentSlugs(resp.DasFacets)
	c.logger.Info("Listed departments", zap.Strings("departments", slugs))
	return slugs, nil
}

// DepartmentSlugs converts the department facets into filter slugs.
func DepartmentSlugs(facets []DasFacet) []string {
	slugs := make([]string, 0, len(facets))
	for _, facet := range facets {
		if facet.Group != DepartmentFacetGroup {
			continue
		}
		if slug := Slugify(facet.Name); slug != "" {
			slugs = append(slugs, slug)
		}
	}
	return slugs
}

// Slugify keeps letters and whitespace, lowercases, and joins the remaining
// words with hyphens: "Fruit & Veg" becomes "fruit-veg".
func Slugify(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, name)
	return strings.Join(strings.Fields(cleaned), "-")
}
