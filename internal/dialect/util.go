package dialect

import (
	"strings"
)

// JoinPredicates combines predicates with AND. An empty list yields "1 = 1"
// so the result is always a valid search condition.
func JoinPredicates(preds []string) string {
	if len(preds) == 0 {
		return "1 = 1"
	}
	return strings.Join(preds, " AND ")
}

// QuoteAll quotes every name with the dialect.
func QuoteAll(d Dialect, names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteName(n)
	}
	return quoted
}
