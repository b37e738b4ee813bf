package view

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	for _, n := range []int{0, 1, 49, 50, 51, 100, 101, 237} {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("id%d", i)
		}
		wantPages := (n + 49) / 50
		var seen []string
		for p := 0; p <= wantPages; p++ {
			got, meta := Paginate(ids, p, PageSize)
			require.Equal(t, wantPages, meta.Pages, "n=%d", n)
			require.Equal(t, n, meta.Posts)
			require.Equal(t, p, meta.CurrentPage)
			start, end := p*50, (p+1)*50
			if end > n {
				end = n
			}
			if start >= n {
				require.Empty(t, got)
				continue
			}
			require.Equal(t, ids[start:end], got)
			seen = append(seen, got...)
		}
		if n > 0 {
			require.Equal(t, ids, seen)
		}
	}
}

func TestPaginateClampsArguments(t *testing.T) {
	ids := []string{"a", "b", "c"}
	got, meta := Paginate(ids, -1, 0)
	require.Equal(t, ids, got)
	require.Equal(t, Page{CurrentPage: 0, Posts: 3, Pages: 1}, meta)
}
