package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/common"
)

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query string
		want  common.Pagination
	}{
		{"", common.Pagination{Page: 1, PerPage: 20}},
		{"?page=3&limit=5", common.Pagination{Page: 3, PerPage: 5}},
		{"?page=2&perPage=10", common.Pagination{Page: 2, PerPage: 10}},
		{"?page=-1&limit=abc", common.Pagination{Page: 1, PerPage: 20}},
		{"?limit=500", common.Pagination{Page: 1, PerPage: 100}},
	}
	for _, tc := range cases {
		got := common.ParsePagination(httptest.NewRequest(http.MethodGet, "/admin/orders"+tc.query, nil), 20, 100)
		require.Equal(t, tc.want, got, tc.query)
	}
	require.Equal(t, 10, common.Pagination{Page: 3, PerPage: 5}.Offset())
}

func TestAtoiDefault(t *testing.T) {
	require.Equal(t, 7, common.AtoiDefault(" 7 ", 1))
	require.Equal(t, 1, common.AtoiDefault("", 1))
	require.Equal(t, 1, common.AtoiDefault("seven", 1))
}
