package items

import "fmt"

// PageSize is the number of matches per lookup page.
const PageSize = 15

type Match struct {
	ID       uint16 `json:"id"`
	Name     string `json:"name"`
	Distance int    `json:"distance"`
}

type Page struct {
	Query      string  `json:"query"`
	Page       int     `json:"page"`
	TotalPages int     `json:"total_pages"`
	Total      int     `json:"total"`
	Matches    []Match `json:"matches"`
}

// Search ranks every entry containing query by edit distance (ties by id) and
// returns the requested 1-based page. Pages past the end are empty.
func Search(query string, names Names, page int) (Page, error) {
	if page < 1 {
		return Page{}, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	if fold(query) == "" {
		return Page{}, fmt.Errorf("%w: empty search term", ErrInvalidInput)
	}
	ranked := names.rank(query)
	p := Page{
		Query:      query,
		Page:       page,
		Total:      len(ranked),
		TotalPages: (len(ranked) + PageSize - 1) / PageSize,
	}
	start := (page - 1) * PageSize
	if start >= len(ranked) {
		return p, nil
	}
	end := start + PageSize
	if end > len(ranked) {
		end = len(ranked)
	}
	p.Matches = make([]Match, 0, end-start)
	for _, c := range ranked[start:end] {
		p.Matches = append(p.Matches, Match{ID: c.ID, Name: c.Name, Distance: c.dist})
	}
	return p, nil
}
