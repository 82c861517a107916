package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/somo/core"
)

const orderingParam = "ordering"

// Ordering binds `?ordering=title,-created_at` (or repeated `ordering` params).
// A leading "-" orders descending; blank and repeated fields are skipped.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	seen := make(map[string]struct{})
	for _, val := range ctx.QueryParams()[orderingParam] {
		for _, field := range strings.Split(val, ",") {
			field = core.CleanString(field, true /* lower */)
			descending := strings.HasPrefix(field, "-")
			field = strings.TrimPrefix(field, "-")
			if field == "" {
				continue
			}
			if _, dup := seen[field]; dup {
				continue
			}
			seen[field] = struct{}{}
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}
