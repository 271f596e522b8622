package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/atelier/core"
)

var orderingParam = "ordering"

// orderableFields are the only columns an ordering param may name. The field
// ends up interpolated into a SQL ORDER BY clause, so anything outside this
// set is dropped.
var orderableFields = map[string]bool{
	"created_at": true,
	"deadline":   true,
}

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !orderableFields[field] {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}
