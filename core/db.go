package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrderings parses a comma separated ordering spec like "-created_at,judul".
func ParseOrderings(spec string) []DBOrdering {
	var ords []DBOrdering
	for _, field := range strings.Split(spec, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ords = append(ords, DBOrdering{Field: field, Ascending: !descending})
	}
	return ords
}

// FilterOrderings drops orderings on fields that are not allowed.
// allowed maps API field names to column names.
func FilterOrderings(ords []DBOrdering, allowed map[string]string) []DBOrdering {
	res := make([]DBOrdering, 0, len(ords))
	for _, ord := range ords {
		if col, ok := allowed[ord.Field]; ok {
			res = append(res, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	return res
}
