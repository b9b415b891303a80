package domain

import "testing"

func TestFiltersNormalizeAndMatch(t *testing.T) {
	year := 3
	f := Filters{
		Speciality: "  Medecine ",
		University: " Alger ",
		StudyYear:  &year,
		UnitIDs:    []string{" u1 ", "", "u1", "u2"},
	}.Normalize()

	if f.Speciality != "medecine" || f.University != "Alger" {
		t.Fatalf("unexpected normalization: %+v", f)
	}
	if len(f.UnitIDs) != 2 {
		t.Fatalf("expected deduplicated unit ids, got %v", f.UnitIDs)
	}

	match := Question{ID: "q1", Speciality: "MEDECINE", University: "Alger", StudyYear: &year, UnitID: "u2"}
	if !f.Matches(match) {
		t.Fatalf("expected question to match")
	}
	other := 4
	for name, q := range map[string]Question{
		"year":       {Speciality: "medecine", University: "Alger", StudyYear: &other, UnitID: "u1"},
		"unit":       {Speciality: "medecine", University: "Alger", StudyYear: &year, UnitID: "u9"},
		"university": {Speciality: "medecine", University: "Oran", StudyYear: &year, UnitID: "u1"},
		"no year":    {Speciality: "medecine", University: "Alger", UnitID: "u1"},
	} {
		if f.Matches(q) {
			t.Fatalf("%s: expected no match", name)
		}
	}
}

func TestCacheKeyIgnoresFormatting(t *testing.T) {
	a := Filters{Speciality: "Pharmacie", UnitIDs: []string{"u1"}, Count: 10}
	b := Filters{Speciality: " pharmacie", UnitIDs: []string{"u1", ""}}
	if a.CacheKey(10) != b.CacheKey(10) {
		t.Fatalf("expected identical keys")
	}
	if a.CacheKey(10) == a.CacheKey(20) {
		t.Fatalf("count must be part of the key")
	}
}

func TestCountForLevel(t *testing.T) {
	cases := map[Level]int{"": 40, LevelEasy: 40, LevelMedium: MaxQuestionCount, LevelHard: MaxQuestionCount}
	for level, want := range cases {
		if got := CountForLevel(level); got != want {
			t.Fatalf("level %q: expected %d, got %d", level, want, got)
		}
	}
}
