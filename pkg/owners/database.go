package owners

import (
	"fmt"
	"math/rand"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	f "github.com/reviewkit/owners/pkg/functional"
)

// ownerIndex is the bidirectional owner<->path index. All inserts go through
// Add so the two maps can never disagree. The Everyone key is always present
// so lookups need no nil check.
type ownerIndex struct {
	ownersToPaths map[string]f.Set[string]
	pathsToOwners map[string]f.Set[string]
}

func newOwnerIndex() *ownerIndex {
	return &ownerIndex{
		ownersToPaths: map[string]f.Set[string]{Everyone: f.NewSet[string]()},
		pathsToOwners: make(map[string]f.Set[string]),
	}
}

func (ix *ownerIndex) Add(owner, ownedPath string) {
	paths, ok := ix.ownersToPaths[owner]
	if !ok {
		paths = f.NewSet[string]()
		ix.ownersToPaths[owner] = paths
	}
	paths.Add(ownedPath)

	ows, ok := ix.pathsToOwners[ownedPath]
	if !ok {
		ows = f.NewSet[string]()
		ix.pathsToOwners[ownedPath] = ows
	}
	ows.Add(owner)
}

// PathsFor returns the paths granted to owner; nil when the owner is unknown.
func (ix *ownerIndex) PathsFor(owner string) f.Set[string] {
	return ix.ownersToPaths[owner]
}

// Database is a lazily-loaded database of OWNERS files for one repository
// snapshot. It can suggest a covering set of reviewers for a list of changed
// files, and check whether a list of files is covered by a list of reviewers.
//
// A Database is safe to reuse across sequential queries (loaded files are
// cached) but not for concurrent mutation. On a load error the instance may
// hold partial data and must be discarded.
type Database struct {
	root string
	fsys RepoFS

	index    *ownerIndex
	comments map[string]map[string]string // owner -> path -> preceding comment

	// Paths that stop us from looking above them for owners. The root is
	// implicitly a member.
	stopLooking f.Set[string]

	readFiles f.Set[string]

	placeholder string
	pick        func(n int) int
}

// Option configures a Database.
type Option func(*Database)

// WithDeterministicTieBreak makes the solver pick the lexicographically first
// of equally-cheap owners instead of a random one.
func WithDeterministicTieBreak() Option {
	return func(db *Database) {
		db.pick = func(int) int { return 0 }
	}
}

// WithTieBreakSeed seeds the random tie-break, for reproducible runs.
func WithTieBreakSeed(seed int64) Option {
	return func(db *Database) {
		rng := rand.New(rand.NewSource(seed))
		db.pick = rng.Intn
	}
}

// WithAnyonePlaceholder overrides the identity that replaces the wildcard
// when it is the only suggested reviewer.
func WithAnyonePlaceholder(name string) Option {
	return func(db *Database) {
		db.placeholder = name
	}
}

// NewDatabase creates a Database for the repository rooted at root, reading
// OWNERS files through fsys.
func NewDatabase(root string, fsys RepoFS, opts ...Option) *Database {
	db := &Database{
		root:        root,
		fsys:        fsys,
		index:       newOwnerIndex(),
		comments:    make(map[string]map[string]string),
		stopLooking: f.NewSet[string](),
		readFiles:   f.NewSet[string](),
		placeholder: AnyonePlaceholder,
		pick:        rand.Intn,
	}
	db.stopLooking.Add("")
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// ReviewersFor returns a suggested set of reviewers that covers the files.
// See ReviewerSetFor.
func (db *Database) ReviewersFor(files []string, author string) (f.Set[string], error) {
	rs, err := db.ReviewerSetFor(files, author)
	if err != nil {
		return nil, err
	}
	reviewers := f.NewSet[string]()
	for _, reviewer := range rs.GetReviewers() {
		reviewers.Add(reviewer)
	}
	return reviewers, nil
}

// ReviewerSetFor returns a suggested set of reviewers covering the files,
// with per-reviewer directories, comments, and alternates.
//
// files are paths relative to (and under) the repository root. If author is
// nonempty it is never suggested, so authors are not assigned their own
// changes. A SyntaxError in any OWNERS file relevant to the query aborts the
// whole query; no partial suggestions are returned.
func (db *Database) ReviewerSetFor(files []string, author string) (*ReviewerSet, error) {
	db.checkPaths(files)
	if err := db.LoadDataNeededFor(files); err != nil {
		return nil, err
	}
	suggested := db.coveringSetOfOwners(files, author)
	suggested.ReduceEveryone(db.placeholder)
	return suggested, nil
}

// FilesNotCoveredBy returns the files not owned by any of the reviewers (or
// the wildcard) at any directory level up to the nearest stop boundary.
func (db *Database) FilesNotCoveredBy(files []string, reviewers []string) (f.Set[string], error) {
	db.checkPaths(files)
	db.checkReviewers(reviewers)
	if err := db.LoadDataNeededFor(files); err != nil {
		return nil, err
	}
	uncovered := f.NewSet[string]()
	for _, file := range files {
		if !db.isCoveredBy(file, reviewers) {
			uncovered.Add(file)
		}
	}
	return uncovered, nil
}

// UnownedFiles returns the files that have no owner at all, at any directory
// level up to the nearest stop boundary. Such files would make a reviewer
// suggestion query panic, so callers filter them out first and report them.
func (db *Database) UnownedFiles(files []string) (f.Set[string], error) {
	db.checkPaths(files)
	if err := db.LoadDataNeededFor(files); err != nil {
		return nil, err
	}
	unowned := f.NewSet[string]()
	for _, file := range files {
		if !db.hasAnyOwner(file) {
			unowned.Add(file)
		}
	}
	return unowned, nil
}

func (db *Database) hasAnyOwner(objname string) bool {
	for {
		if len(db.OwnersFor(objname)) > 0 {
			return true
		}
		if db.ShouldStopLooking(objname) {
			return false
		}
		objname = parentDir(objname)
	}
}

// checkPaths panics on absolute or out-of-root paths; passing them is a
// caller bug, not recoverable input.
func (db *Database) checkPaths(files []string) {
	for _, file := range files {
		if path.IsAbs(file) || file == ".." || strings.HasPrefix(path.Clean(file), "../") {
			panic(fmt.Sprintf("owners: path %q is not relative to repository root %q", file, db.root))
		}
	}
}

func (db *Database) checkReviewers(reviewers []string) {
	for _, reviewer := range reviewers {
		if !emailRegexp.MatchString(reviewer) {
			panic(fmt.Sprintf("owners: reviewer %q is not an email address", reviewer))
		}
	}
}

// matchGlob reports whether name matches pattern. Patterns are usually
// literal directory paths; per-file grants contribute basename globs joined
// onto their directory.
func matchGlob(pattern, name string) bool {
	if pattern == name {
		return true
	}
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// OwnersFor returns every owner whose recorded pattern matches objname. No
// ancestor walking happens here; callers walk with parentDir as needed.
func (db *Database) OwnersFor(objname string) f.Set[string] {
	objOwners := f.NewSet[string]()
	for ownedPath, pathOwners := range db.index.pathsToOwners {
		if matchGlob(ownedPath, objname) {
			for owner := range pathOwners {
				objOwners.Add(owner)
			}
		}
	}
	return objOwners
}

// ShouldStopLooking reports whether objname is at or beyond a stop boundary.
func (db *Database) ShouldStopLooking(objname string) bool {
	for stop := range db.stopLooking {
		if matchGlob(stop, objname) {
			return true
		}
	}
	return false
}

// EnclosingDirWithOwners returns the innermost enclosing directory with
// recorded owners. The result may be a boundary directory with zero owners;
// callers must handle empty coverage.
func (db *Database) EnclosingDirWithOwners(objname string) string {
	dirpath := objname
	for len(db.OwnersFor(dirpath)) == 0 {
		if db.ShouldStopLooking(dirpath) {
			break
		}
		dirpath = parentDir(dirpath)
	}
	return dirpath
}

// LoadDataNeededFor reads the OWNERS files governing each file, walking from
// the containing directory upward until an owned level or a stop boundary.
//
// The walk stops at the first level where any owner is recorded, even when
// that owner's grant is a per-file glob that does not apply to the file in
// question; ancestor files above such a level are intentionally not loaded.
func (db *Database) LoadDataNeededFor(files []string) error {
	for _, file := range files {
		dirpath := parentDir(file)
		for len(db.OwnersFor(dirpath)) == 0 {
			if err := db.readOwners(path.Join(dirpath, "OWNERS")); err != nil {
				return err
			}
			if db.ShouldStopLooking(dirpath) {
				break
			}
			dirpath = parentDir(dirpath)
		}
	}
	return nil
}

// readOwners loads one OWNERS file. Missing files are fine; a file is read
// at most once, which also breaks include cycles.
func (db *Database) readOwners(ownersPath string) error {
	if !db.fsys.Exists(ownersPath) {
		return nil
	}
	if db.readFiles.Contains(ownersPath) {
		return nil
	}
	db.readFiles.Add(ownersPath)

	r, err := db.fsys.Open(ownersPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", ownersPath, err)
	}
	defer func() {
		_ = r.Close()
	}()

	directives, err := parseOwnersFile(ownersPath, r, parentDir(ownersPath))
	if err != nil {
		return err
	}
	for _, d := range directives {
		if err := db.apply(d, ownersPath); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) apply(d directive, ownersPath string) error {
	switch d.kind {
	case kindStopInheritance:
		db.stopLooking.Add(d.path)

	case kindGrant:
		db.addGrant(d.owner, d.path, d.comment)

	case kindInclude:
		includeFile, ok := db.resolveInclude(d.target, ownersPath)
		if !ok {
			return &SyntaxError{ownersPath, d.line, fmt.Sprintf("%s does not refer to an existing file", d.target)}
		}
		if err := db.readOwners(includeFile); err != nil {
			return err
		}
		// Propagate the included directory's owners forward to the including
		// directory. Stop boundaries are not propagated.
		includeDir := parentDir(includeFile)
		for owner := range db.index.pathsToOwners[includeDir] {
			db.index.Add(owner, d.path)
		}
	}
	return nil
}

func (db *Database) addGrant(owner, ownedPath, comment string) {
	if db.comments[owner] == nil {
		db.comments[owner] = make(map[string]string)
	}
	db.comments[owner][ownedPath] = comment
	db.index.Add(owner, ownedPath)
}

func (db *Database) resolveInclude(target, ownersPath string) (string, bool) {
	var includePath string
	if after, ok := strings.CutPrefix(target, "//"); ok {
		includePath = after
	} else {
		includePath = path.Join(parentDir(ownersPath), target)
	}
	if !db.fsys.Exists(includePath) {
		return "", false
	}
	return includePath, true
}

// isCoveredBy reports whether any reviewer (or the wildcard) owns objname at
// any directory level up to the nearest stop boundary.
func (db *Database) isCoveredBy(objname string, reviewers []string) bool {
	all := append(slices.Clone(reviewers), Everyone)
	for {
		for _, reviewer := range all {
			for pattern := range db.index.PathsFor(reviewer) {
				if matchGlob(pattern, objname) {
					return true
				}
			}
		}
		if db.ShouldStopLooking(objname) {
			return false
		}
		objname = parentDir(objname)
	}
}

// mostSpecificComment returns the comment for the deepest grant of owner at
// or above dir, or "" when none exists.
func (db *Database) mostSpecificComment(owner, dir string) string {
	search := dir
	for {
		if comment, ok := db.comments[owner][search]; ok {
			return comment
		}
		if search == "" {
			return ""
		}
		search = parentDir(search)
	}
}
