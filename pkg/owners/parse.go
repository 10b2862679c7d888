package owners

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
)

// Everyone is the wildcard identity: a line containing only "*" means anyone
// may review files in that directory.
const Everyone = "*"

// AnyonePlaceholder replaces Everyone in results where the wildcard ended up
// as the only suggested reviewer.
const AnyonePlaceholder = "<anyone>"

// Recognizes 'X@Y' email addresses. Very simplistic.
const basicEmailPattern = `^[\w\-\+\%\.]+@[\w\-\+\%\.]+$`

var (
	emailRegexp = regexp.MustCompile(basicEmailPattern)
	perFileRe   = regexp.MustCompile(`^per-file (.+)=(.+)$`)
)

// SyntaxError reports malformed OWNERS file content. Line numbers are 1-based.
type SyntaxError struct {
	Path string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d syntax error: %s", e.Path, e.Line, e.Msg)
}

type directiveKind int

const (
	kindGrant directiveKind = iota
	kindStopInheritance
	kindInclude
)

// directive is one parsed OWNERS instruction. Path is the repository-relative
// directory (or directory-joined glob, for per-file lines) it applies to.
type directive struct {
	kind    directiveKind
	path    string
	owner   string // kindGrant
	target  string // kindInclude, as written
	comment string
	line    int
}

// parseOwnersFile parses the OWNERS file at ownersPath (used for error
// reporting) governing dirpath. Comment blocks attach to the next directive;
// a blank line discards the pending block.
func parseOwnersFile(ownersPath string, r io.Reader, dirpath string) ([]directive, error) {
	var directives []directive
	var comment []string
	inComment := false
	lineno := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "#") {
			if !inComment {
				comment = nil
			}
			comment = append(comment, strings.TrimSpace(line[1:]))
			inComment = true
			continue
		}
		if line == "" {
			comment = nil
			inComment = false
			continue
		}
		inComment = false

		if line == "set noparent" {
			directives = append(directives, directive{kind: kindStopInheritance, path: dirpath, line: lineno})
			comment = nil
			continue
		}

		if m := perFileRe.FindStringSubmatch(line); m != nil {
			d, err := parsePerFile(ownersPath, dirpath, line, m, lineno, strings.Join(comment, " "))
			if err != nil {
				return nil, err
			}
			directives = append(directives, d)
			comment = nil
			continue
		}

		if strings.HasPrefix(line, "set ") {
			return nil, &SyntaxError{ownersPath, lineno, fmt.Sprintf("unknown option: %q", strings.TrimSpace(line[4:]))}
		}

		if target, ok := strings.CutPrefix(line, "file:"); ok {
			directives = append(directives, directive{kind: kindInclude, path: dirpath, target: target, line: lineno})
			comment = nil
			continue
		}

		if emailRegexp.MatchString(line) || line == Everyone {
			directives = append(directives, directive{
				kind:    kindGrant,
				path:    dirpath,
				owner:   line,
				comment: strings.Join(comment, "\n"),
				line:    lineno,
			})
			comment = nil
			continue
		}

		return nil, &SyntaxError{ownersPath, lineno,
			fmt.Sprintf(`line is not a "set" directive, file include, "*", or an email address: %q`, line)}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", ownersPath, err)
	}
	return directives, nil
}

// IsEmail reports whether s has the email shape required of reviewer
// identities. Callers passing untrusted input to the query methods should
// check with this first; the queries themselves panic on malformed reviewers.
func IsEmail(s string) bool {
	return emailRegexp.MatchString(s)
}

// CheckSyntax parses one OWNERS file and reports its first syntax error, if
// any. Include targets are not resolved; only the file's own content is
// checked.
func CheckSyntax(ownersPath string, r io.Reader) error {
	_, err := parseOwnersFile(ownersPath, r, parentDir(ownersPath))
	return err
}

// parsePerFile handles "per-file <glob>=<directive>". The glob is scoped to
// the OWNERS file's own directory, so it may not contain path separators, and
// the value may only be a grant or "set noparent".
func parsePerFile(ownersPath, dirpath, line string, m []string, lineno int, comment string) (directive, error) {
	glob := strings.TrimSpace(m[1])
	value := strings.TrimSpace(m[2])
	if strings.ContainsAny(glob, `/\`) {
		return directive{}, &SyntaxError{ownersPath, lineno,
			fmt.Sprintf("per-file globs cannot span directories or use escapes: %q", line)}
	}
	globPath := path.Join(dirpath, glob)

	if value == "set noparent" {
		return directive{kind: kindStopInheritance, path: globPath, line: lineno}, nil
	}
	if emailRegexp.MatchString(value) || value == Everyone {
		return directive{kind: kindGrant, path: globPath, owner: value, comment: comment, line: lineno}, nil
	}
	return directive{}, &SyntaxError{ownersPath, lineno,
		fmt.Sprintf(`per-file line is not "set noparent", "*", or an email address: %q`, value)}
}
