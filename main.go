package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/reviewkit/owners/internal/app"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func ignoreError[V any, E error](res V, _ E) V {
	return res
}

var (
	WarningBuffer = bytes.NewBuffer([]byte{})
	InfoBuffer    = bytes.NewBuffer([]byte{})
)

var (
	ghToken  = flag.String("token", getEnv("INPUT_GITHUB-TOKEN", ""), "GitHub authentication token")
	repoDir  = flag.String("dir", getEnv("GITHUB_WORKSPACE", "/"), "Path to local Git repo")
	pr       = flag.Int("pr", ignoreError(strconv.Atoi(getEnv("INPUT_PR", ""))), "Pull Request number")
	ghRepo   = flag.String("repo", getEnv("INPUT_REPOSITORY", ""), "GitHub repo name")
	prAuthor = flag.String("author", getEnv("INPUT_AUTHOR", ""), "PR author's owner email, excluded from suggestions")
	verbose  = flag.Bool("v", ignoreError(strconv.ParseBool(getEnv("INPUT_VERBOSE", "0"))), "Verbose output")
)

// shouldFail should always be true for errors that are not recoverable
func errorAndExit(shouldFail bool, format string, args ...interface{}) {
	_, err := WarningBuffer.WriteTo(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing warning buffer: %v\n", err)
	}
	if *verbose {
		_, err := InfoBuffer.WriteTo(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing info buffer: %v\n", err)
		}
	}
	fmt.Fprintf(os.Stderr, format, args...)
	if shouldFail {
		os.Exit(1)
	} else {
		os.Exit(0)
	}
}

func init() {
	flag.Parse()
	badFlags := make([]string, 0, 3)
	if *ghToken == "" {
		badFlags = append(badFlags, "token")
	}
	if *pr == 0 {
		badFlags = append(badFlags, "pr")
	}
	if *ghRepo == "" {
		badFlags = append(badFlags, "repo")
	}
	if len(badFlags) > 0 {
		errorAndExit(true, "Required flags or environment variables not set: %s\n", badFlags)
	}
}

func writeGithubOutput(outputData *app.OutputData) {
	outputFile := os.Getenv("GITHUB_OUTPUT")
	if outputFile == "" {
		return
	}
	file, err := os.OpenFile(outputFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening GITHUB_OUTPUT: %v\n", err)
		return
	}
	defer func() {
		_ = file.Close()
	}()
	encoded, err := json.Marshal(outputData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		return
	}
	_, _ = fmt.Fprintf(file, "data=%s\n", encoded)
}

func main() {
	application, err := app.New(app.Config{
		Token:         *ghToken,
		RepoDir:       *repoDir,
		PR:            *pr,
		Repo:          *ghRepo,
		Author:        *prAuthor,
		Verbose:       *verbose,
		InfoBuffer:    InfoBuffer,
		WarningBuffer: WarningBuffer,
	})
	if err != nil {
		errorAndExit(true, "Setup Error: %v\n", err)
	}

	outputData, err := application.Run()
	writeGithubOutput(outputData)
	if err != nil {
		errorAndExit(true, "%v\n", err)
	}

	_, werr := WarningBuffer.WriteTo(os.Stderr)
	if werr != nil {
		fmt.Fprintf(os.Stderr, "Error writing warning buffer: %v\n", werr)
	}
	if *verbose {
		_, ierr := InfoBuffer.WriteTo(os.Stdout)
		if ierr != nil {
			fmt.Fprintf(os.Stderr, "Error writing info buffer: %v\n", ierr)
		}
	}
	if outputData.Message != "" {
		fmt.Println(outputData.Message)
	} else {
		fmt.Println("Reviewer suggestions posted")
	}
}
