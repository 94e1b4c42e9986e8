package orgs

import "strings"

// Weighted text index tiers. Matches in higher tiers rank above matches in
// lower ones.
//
//	A: organization name
//	B: description
//	C: participant names
//
// searchVectorExpr computes the weighted tsvector from positional arguments
// for name ($i), description ($j) and the participant text ($k), which the
// application flattens with ParticipantText. The row trigger installed by
// the migrations computes the same tier-C string in SQL via
// org_participants_text, so out-of-band writes stay consistent with the
// application write path.
const searchVectorExpr = `setweight(to_tsvector('english', coalesce($%d, '')), 'A') ||
		setweight(to_tsvector('english', coalesce($%d, '')), 'B') ||
		setweight(to_tsvector('english', coalesce($%d, '')), 'C')`

// ParticipantText flattens participations into the tier-C input string: for
// each participation, first and last name joined by a space, followed by the
// space-joined other names; participants joined by single spaces. Missing or
// malformed sub-fields contribute nothing. The result is deterministic for
// identical input.
func ParticipantText(parts []Participation) string {
	var tokens []string

	for _, p := range parts {
		if p.Name == nil {
			continue
		}
		if p.Name.FirstName != "" {
			tokens = append(tokens, p.Name.FirstName)
		}
		if p.Name.LastName != "" {
			tokens = append(tokens, p.Name.LastName)
		}
		for _, other := range p.Name.OtherNames {
			if other != "" {
				tokens = append(tokens, other)
			}
		}
	}

	return strings.Join(tokens, " ")
}
