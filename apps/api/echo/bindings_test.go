package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/atelier/core"
)

func TestOrdering_Bind(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []core.DBOrdering
	}{
		{name: "no param"},
		{name: "empty value", query: "ordering="},
		{name: "ascending", query: "ordering=deadline", want: []core.DBOrdering{{Field: "deadline", Ascending: true}}},
		{name: "descending", query: "ordering=-created_at", want: []core.DBOrdering{{Field: "created_at"}}},
		{
			name:  "multiple",
			query: "ordering=deadline,-created_at",
			want:  []core.DBOrdering{{Field: "deadline", Ascending: true}, {Field: "created_at"}},
		},
		{name: "unknown column dropped", query: "ordering=grade"},
		{name: "sql expression dropped", query: "ordering=(SELECT%201)"},
		{name: "sql expression in second position dropped", query: "ordering=deadline,(SELECT%201)", want: []core.DBOrdering{{Field: "deadline", Ascending: true}}},
		{name: "unknown column among known ones dropped", query: "ordering=title,deadline", want: []core.DBOrdering{{Field: "deadline", Ascending: true}}},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			ctx := e.NewContext(req, httptest.NewRecorder())

			ord := new(Ordering)
			ord.Bind(ctx)
			assert.Equal(t, tt.want, ord.Orderings)
		})
	}
}
