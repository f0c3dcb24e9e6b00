package hospital

import "strings"

// FindByName looks up records whose normalized name equals the query, falling
// back to substring containment in either direction so partial names like
// "Manipal Sarjapur" still hit "Manipal Hospital, Sarjapur Road". All matches
// are returned; disambiguation between cities is the caller's job.
func (s *Store) FindByName(query string) []Record {
	q := Normalize(query)
	if q == "" {
		return nil
	}

	var exact []Record
	for _, r := range s.records {
		if Normalize(r.Name) == q {
			exact = append(exact, r)
		}
	}
	if len(exact) > 0 {
		return exact
	}

	var partial []Record
	for _, r := range s.records {
		name := Normalize(r.Name)
		if strings.Contains(name, q) || strings.Contains(q, name) || containsAllTokens(name, q) {
			partial = append(partial, r)
		}
	}
	return partial
}

// FindByNameAndCity narrows FindByName to records in the given city. An empty
// city matches everything.
func (s *Store) FindByNameAndCity(name, city string) []Record {
	matches := s.FindByName(name)
	c := Normalize(city)
	if c == "" {
		return matches
	}

	var filtered []Record
	for _, r := range matches {
		if strings.Contains(Normalize(r.City), c) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// containsAllTokens reports whether every token of the query appears in the
// normalized name. Tolerates queries that drop filler words ("Manipal
// Sarjapur" vs "manipal hospital sarjapur road").
func containsAllTokens(name, query string) bool {
	tokens := strings.Fields(query)
	if len(tokens) < 2 {
		return false
	}
	for _, t := range tokens {
		if !strings.Contains(name, t) {
			return false
		}
	}
	return true
}
