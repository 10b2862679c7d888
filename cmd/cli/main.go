package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/boyter/gocodewalker"
	"github.com/urfave/cli/v2"

	"github.com/reviewkit/owners/internal/config"
	"github.com/reviewkit/owners/internal/git"
	"github.com/reviewkit/owners/pkg/owners"
)

func stripRoot(root string, p string) string {
	if root == "." {
		return p
	}
	return strings.TrimPrefix(p, root+"/")
}

func main() {
	var repo string
	var base string
	var author string

	rootFlag := &cli.StringFlag{
		Name:        "root",
		Aliases:     []string{"r", "repo"},
		Value:       "./",
		Usage:       "Path to local Git repo",
		Destination: &repo,
	}

	app := &cli.App{
		Name:  "owners-cli",
		Usage: "CLI tool for working with OWNERS files",
		Commands: []*cli.Command{
			{
				Name:      "suggest",
				Aliases:   []string{"s"},
				Usage:     "Suggest reviewers for the given files (or the diff against --base)",
				ArgsUsage: "[files...]",
				Flags: []cli.Flag{
					rootFlag,
					&cli.StringFlag{
						Name:        "base",
						Aliases:     []string{"b"},
						Value:       "",
						Usage:       "Base ref to diff against instead of listing files",
						Destination: &base,
					},
					&cli.StringFlag{
						Name:        "author",
						Aliases:     []string{"a"},
						Value:       "",
						Usage:       "Author email to exclude from suggestions",
						Destination: &author,
					},
				},
				Action: func(cCtx *cli.Context) error {
					return suggestReviewers(repo, base, author, cCtx.Args().Slice())
				},
			},
			{
				Name:      "owners",
				Aliases:   []string{"o"},
				Usage:     "List every owner of a file, innermost first",
				ArgsUsage: "file",
				Flags:     []cli.Flag{rootFlag},
				Action: func(cCtx *cli.Context) error {
					return fileOwners(repo, cCtx.Args().First())
				},
			},
			{
				Name:      "covered",
				Aliases:   []string{"c"},
				Usage:     "Check whether the given reviewers cover the given files",
				ArgsUsage: "[files...]",
				Flags: []cli.Flag{
					rootFlag,
					&cli.StringSliceFlag{
						Name:    "reviewer",
						Aliases: []string{"u"},
						Usage:   "Reviewer email (repeatable)",
					},
				},
				Action: func(cCtx *cli.Context) error {
					return checkCoverage(repo, cCtx.StringSlice("reviewer"), cCtx.Args().Slice())
				},
			},
			{
				Name:    "lint",
				Aliases: []string{"l"},
				Usage:   "Check every OWNERS file in the repository for syntax errors",
				Flags:   []cli.Flag{rootFlag},
				Action: func(cCtx *cli.Context) error {
					return lintOwnersFiles(repo)
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func checkRepo(repo string) error {
	if repoStat, err := os.Lstat(repo); err != nil || !repoStat.IsDir() {
		return fmt.Errorf("Root is not a directory: %s", repo)
	}
	return nil
}

// The library treats malformed paths and reviewer identities as caller bugs
// and panics on them, so everything user-typed is checked here first.
func checkFileArgs(files []string) error {
	for _, file := range files {
		if path.IsAbs(file) || file == ".." || strings.HasPrefix(path.Clean(file), "../") {
			return fmt.Errorf("file path must be relative to the repository root: %s", file)
		}
	}
	return nil
}

func checkReviewerArgs(reviewers []string) error {
	for _, reviewer := range reviewers {
		if !owners.IsEmail(reviewer) {
			return fmt.Errorf("reviewer must be an email address: %s", reviewer)
		}
	}
	return nil
}

func newDatabase(repo string) (*owners.Database, error) {
	conf, err := config.ReadConfig(repo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Error reading owners.toml - using default config\n")
	}
	opts := make([]owners.Option, 0, 2)
	if conf.DeterministicTieBreak {
		opts = append(opts, owners.WithDeterministicTieBreak())
	}
	if conf.AnyonePlaceholder != "" {
		opts = append(opts, owners.WithAnyonePlaceholder(conf.AnyonePlaceholder))
	}
	return owners.NewDatabase(repo, owners.DirFS(repo), opts...), nil
}

func targetFiles(repo, base string, args []string) ([]string, error) {
	if base == "" {
		if len(args) == 0 {
			return nil, fmt.Errorf("no files given; pass file arguments or --base")
		}
		return args, nil
	}
	conf, _ := config.ReadConfig(repo)
	files, err := git.ChangedFiles(git.DiffContext{
		Base:       base,
		Head:       "HEAD",
		Dir:        repo,
		IgnoreDirs: conf.Ignore,
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func suggestReviewers(repo, base, author string, args []string) error {
	if err := checkRepo(repo); err != nil {
		return err
	}
	files, err := targetFiles(repo, base, args)
	if err != nil {
		return err
	}
	if err := checkFileArgs(files); err != nil {
		return err
	}
	db, err := newDatabase(repo)
	if err != nil {
		return err
	}

	unowned, err := db.UnownedFiles(files)
	if err != nil {
		return err
	}
	for _, file := range unowned.Items() {
		fmt.Fprintf(os.Stderr, "WARNING: Unowned File: %s\n", file)
	}
	covered := slices.DeleteFunc(slices.Clone(files), unowned.Contains)
	if len(covered) == 0 {
		return fmt.Errorf("no owned files to suggest reviewers for")
	}

	suggested, err := db.ReviewerSetFor(covered, author)
	if err != nil {
		return err
	}
	fmt.Println(suggested.CommentString())
	return nil
}

func fileOwners(repo, target string) error {
	if err := checkRepo(repo); err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("Target file is required")
	}
	if err := checkFileArgs([]string{target}); err != nil {
		return err
	}
	db, err := newDatabase(repo)
	if err != nil {
		return err
	}
	if err := db.LoadDataNeededFor([]string{target}); err != nil {
		return err
	}

	// Walk from the innermost owned level to the root, printing each
	// level's owners.
	dir := db.EnclosingDirWithOwners(target)
	for {
		levelOwners := db.OwnersFor(dir).Items()
		if len(levelOwners) > 0 {
			slices.Sort(levelOwners)
			label := dir
			if label == "" {
				label = "."
			}
			fmt.Printf("%s: %s\n", label, strings.Join(levelOwners, ", "))
		}
		if db.ShouldStopLooking(dir) {
			break
		}
		dir = parent(dir)
	}
	return nil
}

func parent(p string) string {
	d := path.Dir(p)
	if d == "." || d == "/" {
		return ""
	}
	return d
}

func checkCoverage(repo string, reviewers, files []string) error {
	if err := checkRepo(repo); err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files given")
	}
	if err := checkFileArgs(files); err != nil {
		return err
	}
	if err := checkReviewerArgs(reviewers); err != nil {
		return err
	}
	db, err := newDatabase(repo)
	if err != nil {
		return err
	}
	uncovered, err := db.FilesNotCoveredBy(files, reviewers)
	if err != nil {
		return err
	}
	if len(uncovered) == 0 {
		fmt.Println("All files covered")
		return nil
	}
	items := uncovered.Items()
	slices.Sort(items)
	return cli.Exit(fmt.Sprintf("Files not covered:\n- %s", strings.Join(items, "\n- ")), 1)
}

func lintOwnersFiles(repo string) error {
	if err := checkRepo(repo); err != nil {
		return err
	}

	fileListQueue := make(chan *gocodewalker.File, 100)

	walker := gocodewalker.NewFileWalker(repo, fileListQueue)
	walker.IncludeHidden = true
	walker.ExcludeDirectory = []string{".git"}

	errChan := make(chan error)

	go func() {
		err := walker.Start()
		errChan <- err
		close(errChan)
	}()

	ownersFiles := make([]string, 0)
	for f := range fileListQueue {
		if filepath.Base(f.Location) != "OWNERS" {
			continue
		}
		ownersFiles = append(ownersFiles, stripRoot(repo, f.Location))
	}
	if err := <-errChan; err != nil {
		return fmt.Errorf("Error walking repo: %s", err)
	}
	slices.Sort(ownersFiles)

	bad := 0
	for _, ownersFile := range ownersFiles {
		file, err := os.Open(filepath.Join(repo, ownersFile))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", ownersFile, err)
			bad++
			continue
		}
		err = owners.CheckSyntax(ownersFile, file)
		_ = file.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			bad++
		}
	}
	if bad > 0 {
		return cli.Exit(fmt.Sprintf("%d OWNERS file(s) with errors", bad), 1)
	}
	fmt.Printf("%d OWNERS file(s) OK\n", len(ownersFiles))
	return nil
}
