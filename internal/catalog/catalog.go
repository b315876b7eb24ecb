// Package catalog loads the read-only game data tables (names, stacks,
// customizations, recipes) once at startup.
package catalog

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/language"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/items"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/recipes"
)

type Catalog struct {
	Stacks  items.Stacks
	Remakes items.Remakes
	Recipes *recipes.Table

	names   map[string]items.Names
	Digests map[string]string
}

type ItemDef struct {
	ID       string        `json:"id"`
	MaxStack int           `json:"max_stack,omitempty"`
	Remake   *items.Remake `json:"remake,omitempty"`
}

type RecipeDef struct {
	RecipeID string `json:"recipe_id"`
	ItemID   string `json:"item_id"`
}

// Load reads items.json, recipes.json and names/text_item_<lang>.txt[.zst]
// from dir.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{
		Stacks:  items.Stacks{},
		Remakes: items.Remakes{},
		names:   map[string]items.Names{},
		Digests: map[string]string{},
	}
	if err := c.loadItems(filepath.Join(dir, "items.json")); err != nil {
		return nil, err
	}
	if err := c.loadRecipes(filepath.Join(dir, "recipes.json")); err != nil {
		return nil, err
	}
	if err := c.loadNames(filepath.Join(dir, "names")); err != nil {
		return nil, err
	}
	return c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func validate(name, schema string, raw []byte) error {
	s, err := jsonschema.CompileString(name+".schema.json", schema)
	if err != nil {
		return fmt.Errorf("%s: compile schema: %w", name, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func parseHexID(s string) (uint16, error) {
	id := items.ParseID(s)
	if id == items.None {
		return 0, fmt.Errorf("bad id %q", s)
	}
	return id, nil
}

func (c *Catalog) loadItems(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	c.Digests["items"] = sha256Hex(raw)
	if err := validate("items.json", itemsSchema, raw); err != nil {
		return err
	}
	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	for _, d := range defs {
		id, err := parseHexID(d.ID)
		if err != nil {
			return fmt.Errorf("items.json: %w", err)
		}
		if d.MaxStack > 0 {
			c.Stacks[id] = uint16(d.MaxStack)
		}
		if d.Remake != nil {
			c.Remakes[id] = *d.Remake
		}
	}
	return nil
}

func (c *Catalog) loadRecipes(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	c.Digests["recipes"] = sha256Hex(raw)
	if err := validate("recipes.json", recipesSchema, raw); err != nil {
		return err
	}
	var defs []RecipeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	forward := make(map[uint16]uint16, len(defs))
	for _, d := range defs {
		r, err := parseHexID(d.RecipeID)
		if err != nil {
			return fmt.Errorf("recipes.json: %w", err)
		}
		it, err := parseHexID(d.ItemID)
		if err != nil {
			return fmt.Errorf("recipes.json: %w", err)
		}
		if _, dup := forward[r]; dup {
			return fmt.Errorf("recipes.json: recipe %X listed twice", r)
		}
		forward[r] = it
	}
	t, err := recipes.New(forward)
	if err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	c.Recipes = t
	return nil
}

const namePrefix = "text_item_"

func (c *Catalog) loadNames(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), namePrefix) {
			continue
		}
		base := strings.TrimPrefix(e.Name(), namePrefix)
		var compressed bool
		switch {
		case strings.HasSuffix(base, ".txt.zst"):
			base = strings.TrimSuffix(base, ".txt.zst")
			compressed = true
		case strings.HasSuffix(base, ".txt"):
			base = strings.TrimSuffix(base, ".txt")
		default:
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		if compressed {
			if raw, err = decompress(raw); err != nil {
				return fmt.Errorf("%s: %w", e.Name(), err)
			}
		}
		lang := NormalizeLanguage(base)
		names, err := parseNames(bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		c.names[lang] = names
		c.Digests["names_"+lang] = sha256Hex(raw)
	}
	if len(c.names) == 0 {
		return fmt.Errorf("%s: no %s*.txt name tables", dir, namePrefix)
	}
	return nil
}

func decompress(raw []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(raw, nil)
}

// parseNames reads one display name per line; the line number is the item id.
func parseNames(r io.Reader) (items.Names, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var out items.Names
	id := 0
	for sc.Scan() {
		if id > int(items.None) {
			return nil, fmt.Errorf("more than %d lines", items.None)
		}
		name := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if name != "" {
			out = append(out, items.Entry{ID: uint16(id), Name: name})
		}
		id++
	}
	return out, sc.Err()
}

// NormalizeLanguage maps user and file language codes onto table keys.
// BCP 47 tags collapse to their base language, with the game's own codes for
// Japanese and Chinese.
func NormalizeLanguage(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	switch c {
	case "jp", "zhs", "zht":
		return c
	}
	tag, err := language.Parse(c)
	if err != nil {
		return c
	}
	base, _ := tag.Base()
	switch base.String() {
	case "ja":
		return "jp"
	case "zh":
		if script, _ := tag.Script(); script.String() == "Hant" {
			return "zht"
		}
		return "zhs"
	}
	return base.String()
}

// Names implements items.Languages.
func (c *Catalog) Names(lang string) (items.Names, bool) {
	n, ok := c.names[NormalizeLanguage(lang)]
	return n, ok
}

func (c *Catalog) Languages() []string {
	out := make([]string, 0, len(c.names))
	for l := range c.names {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// NewFromTables builds a catalog from in-memory tables.
func NewFromTables(names map[string]items.Names, stacks items.Stacks, remakes items.Remakes, rt *recipes.Table) *Catalog {
	c := &Catalog{
		Stacks:  stacks,
		Remakes: remakes,
		Recipes: rt,
		names:   map[string]items.Names{},
		Digests: map[string]string{},
	}
	for l, n := range names {
		c.names[NormalizeLanguage(l)] = n
	}
	if c.Stacks == nil {
		c.Stacks = items.Stacks{}
	}
	if c.Remakes == nil {
		c.Remakes = items.Remakes{}
	}
	return c
}
