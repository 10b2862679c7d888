package owners

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	f "github.com/reviewkit/owners/pkg/functional"
)

// ReviewerAssignment describes what one suggested reviewer should review.
type ReviewerAssignment struct {
	// Comments maps a grant's explanatory comment to the files it covers.
	Comments map[string][]string
	// Alternates are other owners who could review the same directories.
	Alternates f.Set[string]
	// Dirs is the set of directories under review.
	Dirs f.Set[string]
}

func newReviewerAssignment() *ReviewerAssignment {
	return &ReviewerAssignment{
		Comments:   make(map[string][]string),
		Alternates: f.NewSet[string](),
		Dirs:       f.NewSet[string](),
	}
}

// ReviewerSet holds the suggested reviewers and what each should review.
// It is built fresh per query and discarded after use.
type ReviewerSet struct {
	Reviewers map[string]*ReviewerAssignment
}

func NewReviewerSet() *ReviewerSet {
	return &ReviewerSet{Reviewers: make(map[string]*ReviewerAssignment)}
}

func (rs *ReviewerSet) assignment(primary string) *ReviewerAssignment {
	assignment, ok := rs.Reviewers[primary]
	if !ok {
		assignment = newReviewerAssignment()
		rs.Reviewers[primary] = assignment
	}
	return assignment
}

// Add assigns a directory (and the files that mapped to it) to a primary
// reviewer, filed under the grant's comment.
func (rs *ReviewerSet) Add(primary, directory string, files []string, comment string) {
	assignment := rs.assignment(primary)
	assignment.Comments[comment] = append(assignment.Comments[comment], files...)
	assignment.Dirs.Add(directory)
}

func (rs *ReviewerSet) AddAlternates(primary string, alternates []string) {
	assignment := rs.assignment(primary)
	for _, alternate := range alternates {
		assignment.Alternates.Add(alternate)
	}
}

// GetReviewers returns the suggested reviewers, sorted.
func (rs *ReviewerSet) GetReviewers() []string {
	reviewers := make([]string, 0, len(rs.Reviewers))
	for reviewer := range rs.Reviewers {
		reviewers = append(reviewers, reviewer)
	}
	slices.Sort(reviewers)
	return reviewers
}

// ReviewDirs returns the directories assigned to primary.
func (rs *ReviewerSet) ReviewDirs(primary string) f.Set[string] {
	return rs.assignment(primary).Dirs
}

func (rs *ReviewerSet) IsEmpty() bool {
	return len(rs.Reviewers) == 0
}

// ReduceEveryone simplifies the set when the wildcard identity was chosen.
// The wildcard entry is always dropped; if it was the only reviewer it is
// renamed to the placeholder, signalling that any reviewer is acceptable.
func (rs *ReviewerSet) ReduceEveryone(placeholder string) {
	assignment, ok := rs.Reviewers[Everyone]
	if !ok {
		return
	}
	if len(rs.Reviewers) == 1 {
		rs.Reviewers[placeholder] = assignment
	}
	delete(rs.Reviewers, Everyone)
}

// CommentString renders the set for humans, one reviewer per line with the
// directories they should review and any alternates.
func (rs *ReviewerSet) CommentString() string {
	lines := make([]string, 0, len(rs.Reviewers))
	for _, reviewer := range rs.GetReviewers() {
		assignment := rs.Reviewers[reviewer]
		dirs := assignment.Dirs.Items()
		sort.Strings(dirs)
		for i, dir := range dirs {
			if dir == "" {
				dirs[i] = "."
			}
		}
		line := fmt.Sprintf("- %s (%s)", reviewer, strings.Join(dirs, ", "))
		if len(assignment.Alternates) > 0 {
			alternates := assignment.Alternates.Items()
			sort.Strings(alternates)
			line += fmt.Sprintf(" [or: %s]", strings.Join(alternates, ", "))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
