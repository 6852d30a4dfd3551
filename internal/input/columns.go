package input

import (
	"errors"
	"strings"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

// ErrNoNameColumn is returned when no header looks like a business name.
var ErrNoNameColumn = errors.New("no business name column")

// Header fragments per logical field, most specific first.
var (
	namePatterns    = []string{"business name", "company name", "name", "business", "company"}
	websitePatterns = []string{"website", "url", "site", "web", "link"}
	cityPatterns    = []string{"city", "location", "place", "town"}
)

// DetectColumns matches headers case-insensitively against known fragments.
// Patterns are tried in order and the first header containing one wins; a
// header claimed by the name column is not reused for website or city.
func DetectColumns(headers []string) (audit.ColumnMapping, error) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(h, "_", " "))), " ")
	}
	used := make(map[int]bool, 3)
	match := func(patterns []string) string {
		for _, p := range patterns {
			for i, h := range normalized {
				if !used[i] && strings.Contains(h, p) {
					used[i] = true
					return headers[i]
				}
			}
		}
		return ""
	}

	m := audit.ColumnMapping{BusinessName: match(namePatterns)}
	if m.BusinessName == "" {
		return audit.ColumnMapping{}, ErrNoNameColumn
	}
	m.Website = match(websitePatterns)
	m.City = match(cityPatterns)
	return m, nil
}
