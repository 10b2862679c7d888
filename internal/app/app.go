package app

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/reviewkit/owners/internal/config"
	"github.com/reviewkit/owners/internal/git"
	gh "github.com/reviewkit/owners/internal/github"
	f "github.com/reviewkit/owners/pkg/functional"
	"github.com/reviewkit/owners/pkg/owners"
)

const commentPrefix = "## Reviewer Suggestions"

// OutputData holds the data that will be written to GITHUB_OUTPUT
type OutputData struct {
	Suggested  []string                       `json:"suggested"`
	Alternates map[string][]string            `json:"alternates"`
	Comments   map[string]map[string][]string `json:"comments"`
	Unowned    []string                       `json:"unowned_files"`
	Success    bool                           `json:"success"`
	Message    string                         `json:"message"`
}

func NewOutputData(rs *owners.ReviewerSet, unowned []string) *OutputData {
	alternates := make(map[string][]string)
	comments := make(map[string]map[string][]string)
	suggested := []string{}
	if rs != nil {
		suggested = rs.GetReviewers()
		for _, reviewer := range suggested {
			assignment := rs.Reviewers[reviewer]
			alts := assignment.Alternates.Items()
			if len(alts) > 0 {
				sort.Strings(alts)
				alternates[reviewer] = alts
			}
			for comment, files := range assignment.Comments {
				if comment == "" {
					continue
				}
				if comments[reviewer] == nil {
					comments[reviewer] = make(map[string][]string)
				}
				comments[reviewer][comment] = files
			}
		}
	}
	sort.Strings(unowned)
	return &OutputData{
		Suggested:  suggested,
		Alternates: alternates,
		Comments:   comments,
		Unowned:    unowned,
		Success:    false,
		Message:    "",
	}
}

func (od *OutputData) UpdateOutputData(success bool, message string) {
	od.Success = success
	od.Message = message
}

// Config holds the application configuration
type Config struct {
	Token         string
	RepoDir       string
	PR            int
	Repo          string
	Author        string
	Verbose       bool
	InfoBuffer    io.Writer
	WarningBuffer io.Writer
}

// App represents the application with its dependencies
type App struct {
	Conf   *config.Config
	config *Config
	client gh.Client
	db     *owners.Database
}

// New creates a new App instance with the given configuration
func New(cfg Config) (*App, error) {
	repoSplit := strings.Split(cfg.Repo, "/")
	if len(repoSplit) != 2 {
		return nil, fmt.Errorf("invalid repo name: %s", cfg.Repo)
	}
	owner := repoSplit[0]
	repo := repoSplit[1]

	client := gh.NewClient(owner, repo, cfg.Token)
	app := &App{
		config: &cfg,
		client: client,
	}

	return app, nil
}

func (a *App) printDebug(format string, args ...interface{}) {
	if a.config.Verbose {
		_, _ = fmt.Fprintf(a.config.InfoBuffer, format, args...)
	}
}

func (a *App) printWarn(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(a.config.WarningBuffer, format, args...)
}

// Run executes the application logic
func (a *App) Run() (*OutputData, error) {
	a.client.SetWarningBuffer(a.config.WarningBuffer)
	a.client.SetInfoBuffer(a.config.InfoBuffer)

	if err := a.client.InitPR(a.config.PR); err != nil {
		return &OutputData{}, fmt.Errorf("InitPR Error: %v", err)
	}
	a.printDebug("PR: %d\n", a.client.PR().GetNumber())

	conf, err := config.ReadConfig(a.config.RepoDir)
	if err != nil {
		a.printWarn("Error reading owners.toml - using default config\n")
	}
	a.Conf = conf

	files, err := a.changedFiles(conf)
	if err != nil {
		return &OutputData{}, err
	}
	if len(files) == 0 {
		outputData := NewOutputData(nil, nil)
		outputData.UpdateOutputData(true, "No reviewable changes")
		return outputData, nil
	}

	a.db = owners.NewDatabase(a.config.RepoDir, a.ownersFS(), a.databaseOptions(conf)...)

	unowned, err := a.db.UnownedFiles(files)
	if err != nil {
		return &OutputData{}, fmt.Errorf("UnownedFiles Error: %v", err)
	}
	for _, uFile := range unowned.Items() {
		a.printWarn("WARNING: Unowned File: %s\n", uFile)
	}

	covered := f.Filtered(files, func(file string) bool {
		return !unowned.Contains(file)
	})
	if len(covered) == 0 {
		outputData := NewOutputData(nil, unowned.Items())
		outputData.UpdateOutputData(false, "No owned files in this change")
		return outputData, nil
	}

	suggested, err := a.db.ReviewerSetFor(covered, a.config.Author)
	if err != nil {
		return NewOutputData(nil, unowned.Items()), fmt.Errorf("ReviewerSetFor Error: %v", err)
	}
	a.printDebug("Suggested Reviewers:\n%s\n", suggested.CommentString())

	outputData := NewOutputData(suggested, unowned.Items())

	if err := a.requestReviewers(suggested); err != nil {
		return outputData, fmt.Errorf("RequestReviewers Error: %v", err)
	}
	if err := a.upsertComment(suggested, unowned.Items()); err != nil {
		a.printWarn("WARNING: Error updating PR comment: %v\n", err)
	}

	outputData.UpdateOutputData(true, "")
	return outputData, nil
}

// changedFiles prefers the local git diff; without a base SHA or on a diff
// failure it falls back to the GitHub API listing.
func (a *App) changedFiles(conf *config.Config) ([]string, error) {
	pr := a.client.PR()
	diffContext := git.DiffContext{
		Base:       pr.Base.GetSHA(),
		Head:       pr.Head.GetSHA(),
		Dir:        a.config.RepoDir,
		IgnoreDirs: conf.Ignore,
	}
	a.printDebug("Getting diff for %s...%s\n", diffContext.Base, diffContext.Head)
	files, err := git.ChangedFiles(diffContext)
	if err == nil {
		return files, nil
	}
	a.printWarn("WARNING: git diff failed (%v), falling back to the GitHub API\n", err)

	apiFiles, apiErr := a.client.ChangedFiles()
	if apiErr != nil {
		return nil, fmt.Errorf("ChangedFiles Error: %v", apiErr)
	}
	return f.Filtered(apiFiles, func(file string) bool {
		return !hasIgnoredPrefix(file, conf.Ignore)
	}), nil
}

func hasIgnoredPrefix(file string, ignoreDirs []string) bool {
	for _, dir := range ignoreDirs {
		if strings.HasPrefix(file, dir) {
			return true
		}
	}
	return false
}

// ownersFS reads OWNERS files from the PR head commit so suggestions reflect
// the change under review rather than the checked-out working tree. When the
// head ref is not available locally it falls back to the working tree.
func (a *App) ownersFS() owners.RepoFS {
	head := a.client.PR().Head.GetSHA()
	fsys, err := git.NewRefFS(head, a.config.RepoDir)
	if err != nil {
		a.printWarn("WARNING: %v; reading OWNERS from the working tree\n", err)
		return owners.DirFS(a.config.RepoDir)
	}
	return fsys
}

func (a *App) databaseOptions(conf *config.Config) []owners.Option {
	opts := make([]owners.Option, 0, 2)
	if conf.DeterministicTieBreak {
		opts = append(opts, owners.WithDeterministicTieBreak())
	}
	if conf.AnyonePlaceholder != "" {
		opts = append(opts, owners.WithAnyonePlaceholder(conf.AnyonePlaceholder))
	}
	return opts
}

// requestReviewers asks GitHub for reviews from the suggested owners,
// skipping placeholder identities and honoring max_suggestions.
func (a *App) requestReviewers(suggested *owners.ReviewerSet) error {
	logins := make([]string, 0, len(suggested.Reviewers))
	for _, reviewer := range suggested.GetReviewers() {
		if !strings.Contains(reviewer, "@") {
			a.printDebug("Skipping non-addressable reviewer %q\n", reviewer)
			continue
		}
		logins = append(logins, gh.LoginFor(reviewer))
	}
	if a.Conf.MaxSuggestions != nil && len(logins) > *a.Conf.MaxSuggestions {
		logins = logins[:*a.Conf.MaxSuggestions]
	}
	return a.client.RequestReviewers(logins)
}

func (a *App) upsertComment(suggested *owners.ReviewerSet, unowned []string) error {
	body := commentBody(suggested, unowned)
	commentID, found, err := a.client.FindExistingComment(commentPrefix, nil)
	if err != nil {
		return err
	}
	if found {
		return a.client.UpdateComment(commentID, body)
	}
	return a.client.AddComment(body)
}

func commentBody(suggested *owners.ReviewerSet, unowned []string) string {
	var sb strings.Builder
	sb.WriteString(commentPrefix)
	sb.WriteString("\n\n")
	sb.WriteString(suggested.CommentString())
	if len(unowned) > 0 {
		sb.WriteString("\n\n### Unowned Files\n")
		for _, file := range unowned {
			sb.WriteString(fmt.Sprintf("- %s\n", file))
		}
	}
	return sb.String()
}
