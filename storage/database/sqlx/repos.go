package sqlxrepos

import (
	"strconv"
	"strings"

	"github.com/trezcool/atelier/core"
)

func itoa(n int) string { return strconv.Itoa(n) }

// orderBy renders an ORDER BY clause from orderings, falling back to def
// when none are given. Fields come from repository code or the API's
// whitelisted ordering binding, never raw user input, so they are safe to
// interpolate.
func orderBy(orderings []core.DBOrdering, def string) string {
	if len(orderings) == 0 {
		if def == "" {
			return ""
		}
		return " ORDER BY " + def
	}
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
