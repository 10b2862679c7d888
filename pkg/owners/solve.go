package owners

import (
	"fmt"
	"math"
	"slices"

	f "github.com/reviewkit/owners/pkg/functional"
)

// dirDistance records where an owner grant was found relative to a directory
// under review: the directory itself is distance 1, its parent 2, and so on.
type dirDistance struct {
	dir      string
	distance int
}

// coveringSetOfOwners runs weighted greedy set cover over the directories
// enclosing the changed files, picking the cheapest owner each round until
// every directory is covered.
func (db *Database) coveringSetOfOwners(files []string, author string) *ReviewerSet {
	dirsToFiles := make(map[string][]string)
	for _, file := range files {
		dir := db.EnclosingDirWithOwners(file)
		dirsToFiles[dir] = append(dirsToFiles[dir], file)
	}
	dirsRemaining := f.NewSet[string]()
	for dir := range dirsToFiles {
		dirsRemaining.Add(dir)
	}

	allPossibleOwners := db.allPossibleOwners(dirsRemaining.Items(), author)
	suggested := NewReviewerSet()

	for len(dirsRemaining) > 0 {
		primary, alternates := db.lowestCostOwnerWithAlternates(allPossibleOwners, dirsRemaining)

		dirsToRemove := f.NewSet[string]()
		for _, el := range allPossibleOwners[primary] {
			if dirsRemaining.Contains(el.dir) {
				dirsToRemove.Add(el.dir)
			}
		}
		for dir := range dirsToRemove {
			comment := db.mostSpecificComment(primary, dir)
			suggested.Add(primary, dir, dirsToFiles[dir], comment)
		}

		// An alternate must own every directory assigned to the primary;
		// a partial substitute is not a substitute.
		reviewDirs := suggested.ReviewDirs(primary)
		finalAlternates := make([]string, 0, len(alternates))
		for _, alternate := range alternates {
			altDirs := f.NewSet[string]()
			for _, el := range allPossibleOwners[alternate] {
				altDirs.Add(el.dir)
			}
			if altDirs.ContainsAll(reviewDirs) {
				finalAlternates = append(finalAlternates, alternate)
			}
		}
		suggested.AddAlternates(primary, finalAlternates)

		for dir := range dirsToRemove {
			dirsRemaining.Remove(dir)
		}
	}
	return suggested
}

// allPossibleOwners returns, per candidate owner, the directories they could
// review with the distance from each directory to the granting level. If the
// same owner appears in multiple OWNERS files above a directory, only the
// closest occurrence counts.
func (db *Database) allPossibleOwners(dirs []string, author string) map[string][]dirDistance {
	allOwners := make(map[string][]dirDistance)
	for _, currentDir := range dirs {
		dirname := currentDir
		distance := 1
		for {
			for owner := range db.OwnersFor(dirname) {
				if author != "" && owner == author {
					continue
				}
				already := slices.ContainsFunc(allOwners[owner], func(el dirDistance) bool {
					return el.dir == currentDir
				})
				if !already {
					allOwners[owner] = append(allOwners[owner], dirDistance{currentDir, distance})
				}
			}
			if db.ShouldStopLooking(dirname) {
				break
			}
			dirname = parentDir(dirname)
			distance++
		}
	}
	return allOwners
}

// totalCostsByOwner scores each candidate against the still-uncovered
// directories. The 1.75 exponent rewards breadth super-linearly: one owner
// covering three directories beats three one-directory owners a level
// closer, but not one owner covering two.
func totalCostsByOwner(allPossibleOwners map[string][]dirDistance, dirs f.Set[string]) map[string]float64 {
	costs := make(map[string]float64)
	for owner, entries := range allPossibleOwners {
		totalDistance := 0
		dirsOwned := 0
		for _, el := range entries {
			if dirs.Contains(el.dir) {
				totalDistance += el.distance
				dirsOwned++
			}
		}
		if dirsOwned > 0 {
			costs[owner] = float64(totalDistance) / math.Pow(float64(dirsOwned), 1.75)
		}
	}
	return costs
}

// lowestCostOwnerWithAlternates picks the cheapest owner for this round and
// returns the identities tied with it as alternates. How a tie is broken is
// configurable; the default picks uniformly at random.
func (db *Database) lowestCostOwnerWithAlternates(allPossibleOwners map[string][]dirDistance, dirs f.Set[string]) (string, []string) {
	costs := totalCostsByOwner(allPossibleOwners, dirs)
	if len(costs) == 0 {
		// The wildcard identity guarantees a candidate for every directory,
		// so an empty candidate set means the database invariant is broken.
		panic(fmt.Sprintf("owners: no candidate owners remain for dirs %v", dirs.Items()))
	}

	lowestCost := math.Inf(1)
	for _, cost := range costs {
		lowestCost = math.Min(lowestCost, cost)
	}
	tied := make([]string, 0, len(costs))
	for owner, cost := range costs {
		if cost == lowestCost {
			tied = append(tied, owner)
		}
	}
	slices.Sort(tied)

	primary := tied[db.pick(len(tied))]
	return primary, f.RemoveValue(tied, primary)
}
