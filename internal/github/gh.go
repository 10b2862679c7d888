package gh

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/go-github/v63/github"
)

type NoPRError struct{}

func (e NoPRError) Error() string {
	return "PR not initialized"
}

type Client interface {
	SetWarningBuffer(writer io.Writer)
	SetInfoBuffer(writer io.Writer)
	InitPR(prID int) error
	PR() *github.PullRequest
	ChangedFiles() ([]string, error)
	RequestReviewers(reviewers []string) error
	AddComment(comment string) error
	FindExistingComment(prefix string, since *time.Time) (int64, bool, error)
	UpdateComment(commentID int64, body string) error
}

type GHClient struct {
	ctx           context.Context
	owner         string
	repo          string
	client        *github.Client
	pr            *github.PullRequest
	warningBuffer io.Writer
	infoBuffer    io.Writer
}

func NewClient(owner, repo, token string) Client {
	client := github.NewClient(nil).WithAuthToken(token)
	return &GHClient{
		ctx:           context.Background(),
		owner:         owner,
		repo:          repo,
		client:        client,
		warningBuffer: io.Discard,
		infoBuffer:    io.Discard,
	}
}

func (gh *GHClient) PR() *github.PullRequest {
	return gh.pr
}

func (gh *GHClient) SetWarningBuffer(writer io.Writer) {
	gh.warningBuffer = writer
}

func (gh *GHClient) SetInfoBuffer(writer io.Writer) {
	gh.infoBuffer = writer
}

func (gh *GHClient) InitPR(prID int) error {
	pull, res, err := gh.client.PullRequests.Get(gh.ctx, gh.owner, gh.repo, prID)
	if err != nil {
		return err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	gh.pr = pull
	return nil
}

// ChangedFiles lists the PR's changed files from the GitHub API, for runs
// without a local checkout. Removed files are skipped.
func (gh *GHClient) ChangedFiles() ([]string, error) {
	if gh.pr == nil {
		return nil, &NoPRError{}
	}
	allFiles := make([]string, 0)
	listFiles := func(page int) (*github.Response, error) {
		listOptions := &github.ListOptions{PerPage: 100, Page: page}
		files, res, err := gh.client.PullRequests.ListFiles(gh.ctx, gh.owner, gh.repo, gh.pr.GetNumber(), listOptions)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = res.Body.Close()
		}()
		for _, file := range files {
			if file.GetStatus() == "removed" {
				continue
			}
			allFiles = append(allFiles, file.GetFilename())
		}
		return res, err
	}
	err := walkPaginatedApi(listFiles)
	if err != nil {
		return nil, err
	}
	return allFiles, nil
}

func (gh *GHClient) RequestReviewers(reviewers []string) error {
	if gh.pr == nil {
		return &NoPRError{}
	}
	if len(reviewers) == 0 {
		return nil
	}
	reviewersRequest := github.ReviewersRequest{Reviewers: reviewers}
	_, res, err := gh.client.PullRequests.RequestReviewers(gh.ctx, gh.owner, gh.repo, gh.pr.GetNumber(), reviewersRequest)
	if err != nil {
		return err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	return err
}

func (gh *GHClient) AddComment(comment string) error {
	if gh.pr == nil {
		return &NoPRError{}
	}
	createCommentOptions := &github.IssueComment{
		Body: &comment,
	}
	_, res, err := gh.client.Issues.CreateComment(gh.ctx, gh.owner, gh.repo, gh.pr.GetNumber(), createCommentOptions)
	if err != nil {
		return err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	return err
}

func (gh *GHClient) FindExistingComment(prefix string, since *time.Time) (int64, bool, error) {
	if gh.pr == nil {
		return 0, false, &NoPRError{}
	}
	allComments := make([]*github.IssueComment, 0)
	listComments := func(page int) (*github.Response, error) {
		listOptions := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100, Page: page}}
		comments, res, err := gh.client.Issues.ListComments(gh.ctx, gh.owner, gh.repo, gh.pr.GetNumber(), listOptions)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = res.Body.Close()
		}()
		allComments = append(allComments, comments...)
		return res, err
	}
	if err := walkPaginatedApi(listComments); err != nil {
		return 0, false, err
	}

	for _, comment := range allComments {
		if since != nil && comment.GetCreatedAt().Before(*since) {
			continue
		}
		if strings.HasPrefix(comment.GetBody(), prefix) {
			return comment.GetID(), true, nil
		}
	}
	return 0, false, nil
}

func (gh *GHClient) UpdateComment(commentID int64, body string) error {
	if gh.pr == nil {
		return &NoPRError{}
	}
	comment := &github.IssueComment{
		Body: &body,
	}
	_, res, err := gh.client.Issues.EditComment(gh.ctx, gh.owner, gh.repo, commentID, comment)
	if err != nil {
		return err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	return nil
}

// LoginFor maps an owner email to a GitHub login by convention: the local
// part of the address. Identities that are not emails are returned as-is.
func LoginFor(email string) string {
	login, _, found := strings.Cut(email, "@")
	if !found {
		return email
	}
	return login
}

func walkPaginatedApi(apiCall func(int) (*github.Response, error)) error {
	page := 1
	for {
		res, err := apiCall(page)
		if err != nil {
			return err
		}
		if res.NextPage == 0 {
			break
		}
		page = res.NextPage
	}
	return nil
}
