// Package search drives the stock product listing: it debounces the free
// text query, decides when a search may run, and walks the cursor pages of
// the current filter.
package search

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/picknpack/dashboard/internal/model"
)

// ErrInvalidSubCategory is returned for a sub-category outside the selected
// category.
var ErrInvalidSubCategory = errors.New("sub-category does not belong to category")

// MinQueryRunes is the shortest query that may search without a category.
const MinQueryRunes = 2

// MinQueryHint is shown when neither a category nor a long enough query is set.
const MinQueryHint = "כדי להציג מוצרים בלי לבחור קטגוריה, צריך להקליד לפחות 2 אותיות בחיפוש."

// Eligible reports whether a product search may be issued.
func Eligible(category, query string) bool {
	if category != "" {
		return true
	}
	return utf8.RuneCountInString(strings.TrimSpace(query)) >= MinQueryRunes
}

// Hint returns the minimum-length hint for the current input, or "".
func Hint(category, rawQuery string) string {
	if Eligible(category, rawQuery) {
		return ""
	}
	return MinQueryHint
}

// CoherentSubCategory returns sub when it is a child of category in tree,
// otherwise "".
func CoherentSubCategory(tree model.CategoryTree, category, sub string) string {
	if category == "" || sub == "" {
		return ""
	}
	if tree.HasSub(category, sub) {
		return sub
	}
	return ""
}
