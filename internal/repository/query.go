package repository

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// whereBuilder собирает условие WHERE с нумерованными параметрами.
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

// add добавляет условие; expr содержит один %d для номера параметра.
func (w *whereBuilder) add(expr string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(expr, len(w.args)))
}

// anyOf добавляет условие column = ANY($n), если список не пуст.
func (w *whereBuilder) anyOf(column string, values []string) {
	if len(values) == 0 {
		return
	}
	w.add(column+" = ANY($%d)", pq.Array(values))
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func stringsOf[T ~string](values []T) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func stringArray(values []string) interface{} {
	return pq.Array(values)
}
