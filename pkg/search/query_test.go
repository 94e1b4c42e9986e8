package search

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSearchQuery_NoFilters(t *testing.T) {
	query, args := buildSearchQuery(Filter{Limit: 10, Offset: 0})

	assert.NotContains(t, query, "WHERE")
	assert.NotContains(t, query, "ts_rank")
	assert.Contains(t, query, "ORDER BY openregisters_id ASC")
	assert.Contains(t, query, "LIMIT $1 OFFSET $2")
	assert.Equal(t, []interface{}{10, 0}, args)
}

func TestBuildSearchQuery_NameFilter(t *testing.T) {
	query, args := buildSearchQuery(Filter{Name: "acme", Limit: 10})

	assert.Contains(t, query, "search_vector @@ plainto_tsquery('english', $1)")
	assert.Contains(t, query, "name ILIKE $2")
	assert.Contains(t, query, "ts_rank(search_vector, plainto_tsquery('english', $1)) AS rank")
	assert.Contains(t, query, "ORDER BY rank DESC, openregisters_id ASC")
	assert.Equal(t, []interface{}{"acme", "%acme%", 10, 0}, args)
}

func TestBuildSearchQuery_AllFilters(t *testing.T) {
	query, args := buildSearchQuery(Filter{
		Name:         "acme",
		Description:  "widgets",
		Jurisdiction: "DE",
		LegalForm:    "GmbH",
		Status:       "active",
		Limit:        25,
		Offset:       50,
	})

	// Filters compose conjunctively.
	assert.Equal(t, 4, strings.Count(query, " AND "))
	assert.Contains(t, query, "jurisdiction ILIKE $4")
	assert.Contains(t, query, "legal_form ILIKE $5")
	assert.Contains(t, query, "status = $6")
	assert.Equal(t, []interface{}{
		"acme", "%acme%", "widgets", "%DE%", "%GmbH%", "active", 25, 50,
	}, args)
}

func TestBuildSearchQuery_DescriptionOnlyRanks(t *testing.T) {
	query, args := buildSearchQuery(Filter{Description: "widgets", Limit: 10})

	assert.Contains(t, query, "ts_rank(search_vector, plainto_tsquery('english', $1)) AS rank")
	assert.Contains(t, query, "ORDER BY rank DESC, openregisters_id ASC")
	assert.Equal(t, []interface{}{"widgets", 10, 0}, args)
}

func TestBuildSearchQuery_NonTextFiltersKeepIdentifierOrder(t *testing.T) {
	query, _ := buildSearchQuery(Filter{Status: "active", Limit: 10})

	assert.NotContains(t, query, "ts_rank")
	assert.Contains(t, query, "ORDER BY openregisters_id ASC")
}

func TestBuildCountQuery_SharesPredicatesWithoutPagination(t *testing.T) {
	filter := Filter{Name: "acme", Status: "active", Limit: 10, Offset: 20}

	query, args := buildCountQuery(filter)

	assert.Contains(t, query, "SELECT COUNT(*)")
	assert.Contains(t, query, "search_vector @@ plainto_tsquery('english', $1)")
	assert.Contains(t, query, "status = $3")
	assert.NotContains(t, query, "LIMIT")
	assert.NotContains(t, query, "OFFSET")
	assert.NotContains(t, query, "ORDER BY")
	assert.Equal(t, []interface{}{"acme", "%acme%", "active"}, args)
}

func TestBuildSearchQuery_InjectionSafe(t *testing.T) {
	hostile := []string{
		"'; DROP TABLE organizations; --",
		`" OR 1=1`,
		"acme%' UNION SELECT * FROM users --",
	}

	for _, input := range hostile {
		t.Run(input, func(t *testing.T) {
			query, args := buildSearchQuery(Filter{
				Name:         input,
				Jurisdiction: input,
				Status:       input,
				Limit:        10,
			})

			// Filter text never appears in the statement; it is only bound.
			assert.NotContains(t, query, "DROP TABLE")
			assert.NotContains(t, query, "UNION")
			assert.NotContains(t, query, input)

			found := 0
			for _, arg := range args {
				if s, ok := arg.(string); ok && strings.Contains(s, input) {
					found++
				}
			}
			require.Greater(t, found, 0, "hostile input must be carried as a bound parameter")
		})
	}
}

func TestBuildSearchQuery_ParametersAreNumberedSequentially(t *testing.T) {
	_, args := buildSearchQuery(Filter{
		Name:        "a",
		Description: "b",
		Status:      "c",
		Limit:       10,
		Offset:      5,
	})

	// One tsquery + one ILIKE fallback for name, one tsquery for
	// description, one status, then limit and offset.
	require.Len(t, args, 6)

	query, _ := buildSearchQuery(Filter{Name: "a", Description: "b", Status: "c", Limit: 10, Offset: 5})
	for i := 1; i <= 6; i++ {
		assert.Contains(t, query, fmt.Sprintf("$%d", i))
	}
}
