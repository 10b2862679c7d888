package owners

import (
	"strings"
	"testing"

	f "github.com/reviewkit/owners/pkg/functional"
)

func suggest(t *testing.T, db *Database, files []string, author string) *ReviewerSet {
	t.Helper()
	rs, err := db.ReviewerSetFor(files, author)
	if err != nil {
		t.Fatalf("ReviewerSetFor(%v): %v", files, err)
	}
	return rs
}

func TestSuggestDisjointAreas(t *testing.T) {
	db := testDB(t, map[string]string{
		"OWNERS":     "alice@x.com\n",
		"src/OWNERS": "bob@x.com\nset noparent\n",
	}, WithDeterministicTieBreak())

	rs := suggest(t, db, []string{"src/a.py", "docs/b.md"}, "")
	if !f.SlicesItemsMatch(rs.GetReviewers(), []string{"alice@x.com", "bob@x.com"}) {
		t.Errorf("expected alice and bob, got %v", rs.GetReviewers())
	}
	if dirs := rs.ReviewDirs("bob@x.com"); !dirs.Contains("src") {
		t.Errorf("expected bob assigned src, got %v", dirs.Items())
	}
}

func TestSuggestPrefersBreadth(t *testing.T) {
	// One owner a level up covering three directories costs
	// 6/3^1.75 ~ 0.88, beating any single close owner at cost 1.
	db := testDB(t, map[string]string{
		"OWNERS":   "broad@x.com\n",
		"a/OWNERS": "oa@x.com\n",
		"b/OWNERS": "ob@x.com\n",
		"c/OWNERS": "oc@x.com\n",
	}, WithDeterministicTieBreak())

	rs := suggest(t, db, []string{"a/f.py", "b/f.py", "c/f.py"}, "")
	if !f.SlicesItemsMatch(rs.GetReviewers(), []string{"broad@x.com"}) {
		t.Errorf("expected the broad owner alone, got %v", rs.GetReviewers())
	}
}

func TestSuggestEveryoneOnlyBecomesPlaceholder(t *testing.T) {
	db := testDB(t, map[string]string{
		"OWNERS": "*\n",
	}, WithDeterministicTieBreak())

	rs := suggest(t, db, []string{"x.py"}, "")
	if !f.SlicesItemsMatch(rs.GetReviewers(), []string{AnyonePlaceholder}) {
		t.Errorf("expected the placeholder alone, got %v", rs.GetReviewers())
	}
}

func TestSuggestCustomPlaceholder(t *testing.T) {
	db := testDB(t, map[string]string{
		"OWNERS": "*\n",
	}, WithDeterministicTieBreak(), WithAnyonePlaceholder("anybody"))

	rs := suggest(t, db, []string{"x.py"}, "")
	if !f.SlicesItemsMatch(rs.GetReviewers(), []string{"anybody"}) {
		t.Errorf("expected the custom placeholder, got %v", rs.GetReviewers())
	}
}

func TestSuggestEveryoneDroppedWhenOthersSuggested(t *testing.T) {
	db := testDB(t, map[string]string{
		"OWNERS":     "*\n",
		"src/OWNERS": "alice@x.com\nset noparent\n",
	}, WithDeterministicTieBreak())

	rs := suggest(t, db, []string{"src/a.py", "docs/b.md"}, "")
	if !f.SlicesItemsMatch(rs.GetReviewers(), []string{"alice@x.com"}) {
		t.Errorf("expected the wildcard to be dropped, got %v", rs.GetReviewers())
	}
}

func TestSuggestTieAlternates(t *testing.T) {
	db := testDB(t, map[string]string{
		"d/OWNERS": "p1@x.com\np2@x.com\nset noparent\n",
	}, WithDeterministicTieBreak())

	rs := suggest(t, db, []string{"d/f.py"}, "")
	if !f.SlicesItemsMatch(rs.GetReviewers(), []string{"p1@x.com"}) {
		t.Fatalf("expected p1 as the sole primary, got %v", rs.GetReviewers())
	}
	if !rs.Reviewers["p1@x.com"].Alternates.Contains("p2@x.com") {
		t.Errorf("expected p2 as an alternate, got %v", rs.Reviewers["p1@x.com"].Alternates.Items())
	}
}

func TestSuggestPartialAlternateDropped(t *testing.T) {
	// p1 and t1 tie in round one, p1 wins and is assigned d1 and d2. t1
	// does not own d2, so a t1 swap would leave d2 uncovered; t1 must not
	// be listed as an alternate. It still surfaces as the primary for d3.
	db := testDB(t, map[string]string{
		"d1/OWNERS": "p1@x.com\nt1@x.com\nset noparent\n",
		"d2/OWNERS": "p1@x.com\nset noparent\n",
		"d3/OWNERS": "t1@x.com\nset noparent\n",
	}, WithDeterministicTieBreak())

	rs := suggest(t, db, []string{"d1/f.py", "d2/f.py", "d3/f.py"}, "")
	if !f.SlicesItemsMatch(rs.GetReviewers(), []string{"p1@x.com", "t1@x.com"}) {
		t.Fatalf("expected p1 and t1, got %v", rs.GetReviewers())
	}
	if alts := rs.Reviewers["p1@x.com"].Alternates; len(alts) != 0 {
		t.Errorf("expected no alternates for p1, got %v", alts.Items())
	}
}

func TestSuggestNoDoubleAssignment(t *testing.T) {
	// Round one assigns x/d1 to a1. Round two's primary b1 also owns x/d1
	// from the root, but only still-uncovered directories may be assigned.
	db := testDB(t, map[string]string{
		"OWNERS":      "b1@x.com\n",
		"x/d1/OWNERS": "a1@x.com\n",
		"d2/OWNERS":   "b1@x.com\n",
	}, WithDeterministicTieBreak())

	rs := suggest(t, db, []string{"x/d1/f.py", "d2/f.py"}, "")
	if !f.SlicesItemsMatch(rs.GetReviewers(), []string{"a1@x.com", "b1@x.com"}) {
		t.Fatalf("expected a1 and b1, got %v", rs.GetReviewers())
	}
	b1Dirs := rs.ReviewDirs("b1@x.com")
	if b1Dirs.Contains("x/d1") {
		t.Error("x/d1 was already covered by a1 and must not be reassigned")
	}
	if !b1Dirs.Contains("d2") {
		t.Errorf("expected b1 assigned d2, got %v", b1Dirs.Items())
	}
}

func TestSuggestExcludesAuthor(t *testing.T) {
	db := testDB(t, map[string]string{
		"d/OWNERS": "alice@x.com\nbob@x.com\nset noparent\n",
	}, WithDeterministicTieBreak())

	rs := suggest(t, db, []string{"d/f.py"}, "alice@x.com")
	if !f.SlicesItemsMatch(rs.GetReviewers(), []string{"bob@x.com"}) {
		t.Errorf("expected bob alone when alice is the author, got %v", rs.GetReviewers())
	}
	if rs.Reviewers["bob@x.com"].Alternates.Contains("alice@x.com") {
		t.Error("the author must not appear as an alternate either")
	}
}

func TestSuggestClosestOccurrenceWins(t *testing.T) {
	// alice appears at the root and in docs; only the docs grant (distance 1)
	// counts, so her cost ties with carol's instead of losing.
	db := testDB(t, map[string]string{
		"OWNERS":      "alice@x.com\n",
		"docs/OWNERS": "alice@x.com\ncarol@x.com\n",
	}, WithDeterministicTieBreak())

	rs := suggest(t, db, []string{"docs/f.md"}, "")
	if !f.SlicesItemsMatch(rs.GetReviewers(), []string{"alice@x.com"}) {
		t.Fatalf("expected alice to win the deterministic tie, got %v", rs.GetReviewers())
	}
	if !rs.Reviewers["alice@x.com"].Alternates.Contains("carol@x.com") {
		t.Errorf("expected carol as an alternate, got %v", rs.Reviewers["alice@x.com"].Alternates.Items())
	}
}

func TestSuggestMostSpecificComment(t *testing.T) {
	db := testDB(t, map[string]string{
		"OWNERS":      "# Top.\nalice@x.com\n",
		"docs/OWNERS": "# Docs expert.\nalice@x.com\n",
	}, WithDeterministicTieBreak())

	rs := suggest(t, db, []string{"docs/f.md", "z.py"}, "")
	assignment := rs.Reviewers["alice@x.com"]
	if assignment == nil {
		t.Fatalf("expected alice to be suggested, got %v", rs.GetReviewers())
	}
	if !f.SlicesItemsMatch(assignment.Comments["Docs expert."], []string{"docs/f.md"}) {
		t.Errorf("expected the docs comment on docs/f.md, got %v", assignment.Comments)
	}
	if !f.SlicesItemsMatch(assignment.Comments["Top."], []string{"z.py"}) {
		t.Errorf("expected the root comment on z.py, got %v", assignment.Comments)
	}
}

func TestSuggestedReviewersCoverEverything(t *testing.T) {
	db := testDB(t, map[string]string{
		"OWNERS":     "alice@x.com\n",
		"src/OWNERS": "bob@x.com\nset noparent\n",
		"doc/OWNERS": "carol@x.com\n",
	}, WithDeterministicTieBreak())

	files := []string{"src/a.py", "doc/b.md", "top.txt"}
	rs := suggest(t, db, files, "")
	uncovered, err := db.FilesNotCoveredBy(files, rs.GetReviewers())
	if err != nil {
		t.Fatalf("FilesNotCoveredBy: %v", err)
	}
	if len(uncovered) != 0 {
		t.Errorf("suggested reviewers must cover every file, %v left over", uncovered.Items())
	}
}

func TestSuggestPanicsWithoutCandidates(t *testing.T) {
	db := testDB(t, map[string]string{}, WithDeterministicTieBreak())
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic when no candidate owners exist")
		}
		if !strings.Contains(r.(string), "no candidate owners") {
			t.Errorf("unexpected panic value: %v", r)
		}
	}()
	_, _ = db.ReviewerSetFor([]string{"orphan.py"}, "")
}

func TestTotalCostsByOwner(t *testing.T) {
	possible := map[string][]dirDistance{
		"near@x.com": {{"a", 1}},
		"far@x.com":  {{"a", 2}, {"b", 2}, {"c", 2}},
		"gone@x.com": {{"z", 1}},
	}
	dirs := f.NewSet[string]()
	dirs.Add("a")
	dirs.Add("b")
	dirs.Add("c")

	costs := totalCostsByOwner(possible, dirs)
	if costs["near@x.com"] != 1 {
		t.Errorf("expected cost 1 for the single-dir owner, got %v", costs["near@x.com"])
	}
	if costs["far@x.com"] >= costs["near@x.com"] {
		t.Errorf("three dirs at distance 2 should beat one at distance 1: %v vs %v",
			costs["far@x.com"], costs["near@x.com"])
	}
	if _, ok := costs["gone@x.com"]; ok {
		t.Error("owners covering no remaining dirs must be excluded")
	}
}

func TestTieBreakSeedIsReproducible(t *testing.T) {
	files := map[string]string{
		"d/OWNERS": "p1@x.com\np2@x.com\np3@x.com\nset noparent\n",
	}
	first := suggest(t, testDB(t, files, WithTieBreakSeed(7)), []string{"d/f.py"}, "")
	second := suggest(t, testDB(t, files, WithTieBreakSeed(7)), []string{"d/f.py"}, "")
	if !f.SlicesItemsMatch(first.GetReviewers(), second.GetReviewers()) {
		t.Errorf("same seed must give the same pick: %v vs %v",
			first.GetReviewers(), second.GetReviewers())
	}
}
