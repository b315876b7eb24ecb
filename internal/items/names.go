package items

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// Entry is one (display name, id) pair of a language table.
type Entry struct {
	ID   uint16 `json:"id"`
	Name string `json:"name"`
}

// Names is a language table ordered by ascending id. It is built once and
// shared read-only.
type Names []Entry

// Languages resolves a language code to its table.
type Languages interface {
	Names(lang string) (Names, bool)
}

// fold case-folds for matching. Casers are stateful, so each call gets its own.
func fold(s string) string { return cases.Fold().String(strings.TrimSpace(s)) }

// Name returns the display name of id, or a hex placeholder.
func (n Names) Name(id uint16) string {
	i := sort.Search(len(n), func(i int) bool { return n[i].ID >= id })
	if i < len(n) && n[i].ID == id {
		return n[i].Name
	}
	return fmt.Sprintf("(Item #%04X)", id)
}

type candidate struct {
	Entry
	dist int
}

// rank returns every entry whose folded name contains the folded query,
// ordered by edit distance to the query and then by id.
func (n Names) rank(query string) []candidate {
	q := fold(query)
	if q == "" {
		return nil
	}
	var out []candidate
	for _, e := range n {
		name := fold(e.Name)
		if name == "" || !strings.Contains(name, q) {
			continue
		}
		out = append(out, candidate{Entry: e, dist: levenshtein.ComputeDistance(name, q)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].dist != out[j].dist {
			return out[i].dist < out[j].dist
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Resolve maps a human-readable name to the closest id.
func (n Names) Resolve(name string) (uint16, error) {
	c := n.rank(name)
	if len(c) == 0 {
		return None, fmt.Errorf("%w: %q", ErrItemNotFound, strings.TrimSpace(name))
	}
	return c[0].ID, nil
}

// SplitLanguage strips an optional leading "<lang>," from a comma separated
// name list. It only strips codes that langs knows.
func SplitLanguage(input, defaultLang string, langs Languages) (lang string, parts []string) {
	parts = strings.Split(input, ",")
	lang = defaultLang
	if len(parts) > 1 && langs != nil {
		code := strings.ToLower(strings.TrimSpace(parts[0]))
		if _, ok := langs.Names(code); ok {
			lang = code
			parts = parts[1:]
		}
	}
	return lang, parts
}

// ResolveNames resolves a comma separated name list (with optional language
// prefix) to ids, preserving input order.
func ResolveNames(input, defaultLang string, langs Languages) ([]uint16, error) {
	if langs == nil {
		return nil, fmt.Errorf("%w: no name tables loaded", ErrInvalidInput)
	}
	lang, parts := SplitLanguage(input, defaultLang, langs)
	table, ok := langs.Names(lang)
	if !ok {
		return nil, fmt.Errorf("%w: unknown language %q", ErrInvalidInput, lang)
	}
	var ids []uint16
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		id, err := table.Resolve(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no item names", ErrInvalidInput)
	}
	return ids, nil
}

// ParseNames resolves the name form into records with count 0.
func ParseNames(input, defaultLang string, langs Languages) ([]Item, error) {
	ids, err := ResolveNames(input, defaultLang, langs)
	if err != nil {
		return nil, err
	}
	out := make([]Item, len(ids))
	for i, id := range ids {
		out[i] = New(id)
	}
	return out, nil
}

// ParseUserInput accepts either form: the hex form is tried first and the
// name form is used when any token is not a hex id.
func ParseUserInput(input, defaultLang string, langs Languages) ([]Item, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidInput)
	}
	if list, err := ParseHexList(input); err == nil {
		return list, nil
	}
	return ParseNames(input, defaultLang, langs)
}
