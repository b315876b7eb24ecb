package items

import (
	"errors"
	"testing"
)

type testLangs map[string]Names

func (l testLangs) Names(lang string) (Names, bool) {
	n, ok := l[lang]
	return n, ok
}

func fruitNames() Names {
	return Names{
		{ID: 0x0010, Name: "apple"},
		{ID: 0x0011, Name: "apply"},
		{ID: 0x0012, Name: "apples"},
		{ID: 0x0020, Name: "Wooden Table"},
		{ID: 0x0021, Name: "Table"},
	}
}

func testTables() testLangs {
	return testLangs{
		"en": fruitNames(),
		"de": Names{{ID: 0x0010, Name: "Apfel"}},
	}
}

func TestResolve_PrefersExactThenClosest(t *testing.T) {
	n := fruitNames()
	id, err := n.Resolve("TABLE")
	if err != nil || id != 0x0021 {
		t.Fatalf("id=%04X err=%v want 0021", id, err)
	}
	id, err = n.Resolve("appl")
	if err != nil || id != 0x0010 {
		t.Fatalf("id=%04X err=%v want 0010 (tie broken by id)", id, err)
	}
}

func TestResolve_NotFound(t *testing.T) {
	_, err := fruitNames().Resolve("banana")
	if !errors.Is(err, ErrItemNotFound) || !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err=%v want ErrItemNotFound", err)
	}
}

func TestParseNames_LanguagePrefix(t *testing.T) {
	got, err := ParseNames("de, apfel", "en", testTables())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].ID != 0x0010 {
		t.Fatalf("got %+v", got)
	}
	got, err = ParseNames("apples, wooden table", "en", testTables())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0].ID != 0x0012 || got[1].ID != 0x0020 {
		t.Fatalf("got %+v", got)
	}
}

func TestParseUserInput_FallsBackToNames(t *testing.T) {
	got, err := ParseUserInput("1234 5678", "en", testTables())
	if err != nil || len(got) != 2 {
		t.Fatalf("hex form: got=%+v err=%v", got, err)
	}
	got, err = ParseUserInput("wooden table", "en", testTables())
	if err != nil || len(got) != 1 || got[0].ID != 0x0020 {
		t.Fatalf("name form: got=%+v err=%v", got, err)
	}
	if _, err := ParseUserInput("no such thing", "en", testTables()); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("err=%v want ErrItemNotFound", err)
	}
}

func TestNamesName(t *testing.T) {
	n := fruitNames()
	if got := n.Name(0x0011); got != "apply" {
		t.Fatalf("name=%q", got)
	}
	if got := n.Name(0x9999); got != "(Item #9999)" {
		t.Fatalf("name=%q", got)
	}
}
