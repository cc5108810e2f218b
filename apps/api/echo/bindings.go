package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
)

var orderingParam = "ordering"

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
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindQueryFilter reads ?search=&participant_type=a,b&unread=true
func bindQueryFilter(ctx echo.Context) *messaging.QueryFilter {
	filter := &messaging.QueryFilter{Search: ctx.QueryParam("search")}
	for _, val := range ctx.QueryParams()["participant_type"] {
		for _, pt := range strings.Split(val, ",") {
			if pt = core.CleanString(pt, true /* lower */); pt != "" {
				filter.ParticipantTypes = append(filter.ParticipantTypes, messaging.ParticipantType(pt))
			}
		}
	}
	if unread, err := strconv.ParseBool(ctx.QueryParam("unread")); err == nil {
		filter.Unread = &unread
	}
	filter.Clean()
	return filter
}
