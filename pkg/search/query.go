package search

import (
	"fmt"
	"strings"
)

// predicateSet accumulates WHERE clauses with numbered parameters. Filter
// values are always bound, never interpolated, so filter content cannot
// alter the statement.
type predicateSet struct {
	clauses []string
	args    []interface{}
	// rankArg is the parameter index of the tsquery used for relevance
	// ranking, 0 when no text predicate exists.
	rankArg int
}

// next returns the placeholder for one new bound argument.
func (p *predicateSet) next(arg interface{}) string {
	p.args = append(p.args, arg)
	return fmt.Sprintf("$%d", len(p.args))
}

// buildPredicates translates the filter into conjunctive WHERE clauses.
func buildPredicates(f Filter) *predicateSet {
	p := &predicateSet{}

	if f.Name != "" {
		// Weighted full-text match, with a substring fallback for inputs
		// the tokenizer misses (abbreviations, partial words).
		tsParam := p.next(f.Name)
		likeParam := p.next("%" + f.Name + "%")
		p.clauses = append(p.clauses, fmt.Sprintf(
			"(search_vector @@ plainto_tsquery('english', %s) OR name ILIKE %s)",
			tsParam, likeParam,
		))
		p.rankArg = len(p.args) - 1
	}

	if f.Description != "" {
		param := p.next(f.Description)
		p.clauses = append(p.clauses, fmt.Sprintf(
			"search_vector @@ plainto_tsquery('english', %s)", param,
		))
		if p.rankArg == 0 {
			p.rankArg = len(p.args)
		}
	}

	if f.Jurisdiction != "" {
		param := p.next("%" + f.Jurisdiction + "%")
		p.clauses = append(p.clauses, fmt.Sprintf("jurisdiction ILIKE %s", param))
	}

	if f.LegalForm != "" {
		param := p.next("%" + f.LegalForm + "%")
		p.clauses = append(p.clauses, fmt.Sprintf("legal_form ILIKE %s", param))
	}

	if f.Status != "" {
		param := p.next(f.Status)
		p.clauses = append(p.clauses, fmt.Sprintf("status = %s", param))
	}

	return p
}

// whereClause renders the accumulated clauses, or an empty string when the
// filter imposes no predicate.
func (p *predicateSet) whereClause() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(p.clauses, " AND ")
}

// buildSearchQuery produces the ranked page query and its parameters.
func buildSearchQuery(f Filter) (string, []interface{}) {
	p := buildPredicates(f)

	var b strings.Builder
	b.WriteString("SELECT openregisters_id, name, description, jurisdiction, legal_form, status")

	if p.rankArg > 0 {
		fmt.Fprintf(&b, ", ts_rank(search_vector, plainto_tsquery('english', $%d)) AS rank", p.rankArg)
	}

	b.WriteString(" FROM organizations")

	if where := p.whereClause(); where != "" {
		b.WriteString(" " + where)
	}

	// Identifier tiebreak keeps pagination deterministic across requests.
	if p.rankArg > 0 {
		b.WriteString(" ORDER BY rank DESC, openregisters_id ASC")
	} else {
		b.WriteString(" ORDER BY openregisters_id ASC")
	}

	limitParam := p.next(f.Limit)
	offsetParam := p.next(f.Offset)
	fmt.Fprintf(&b, " LIMIT %s OFFSET %s", limitParam, offsetParam)

	return b.String(), p.args
}

// buildCountQuery produces the total-count query sharing the page query's
// predicates but not its ranking or pagination clauses.
func buildCountQuery(f Filter) (string, []interface{}) {
	p := buildPredicates(f)

	query := "SELECT COUNT(*) FROM organizations"
	if where := p.whereClause(); where != "" {
		query += " " + where
	}

	return query, p.args
}
