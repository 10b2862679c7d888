package git

import (
	"fmt"
	"io"
	"strings"
	"testing"
)

type mockExecutor struct {
	outputs map[string][]byte
	errors  map[string]error
}

func (m *mockExecutor) execute(command string, args ...string) ([]byte, error) {
	key := fmt.Sprintf("%s %s", command, strings.Join(args, " "))
	if err, ok := m.errors[key]; ok {
		return nil, err
	}
	if output, ok := m.outputs[key]; ok {
		return output, nil
	}
	return nil, fmt.Errorf("unexpected command: %s", key)
}

func TestRefFSOpen(t *testing.T) {
	mockExec := &mockExecutor{
		outputs: map[string][]byte{
			"git show baseref123:OWNERS":     []byte("alice@x.com\n"),
			"git show baseref123:sub/OWNERS": []byte("bob@x.com\n"),
		},
		errors: map[string]error{
			"git show baseref123:nonexistent": fmt.Errorf("file not found"),
		},
	}
	fsys := &RefFS{ref: "baseref123", dir: "/repo", executor: mockExec}

	tt := []struct {
		name        string
		path        string
		expected    string
		expectError bool
	}{
		{"read root owners", "OWNERS", "alice@x.com\n", false},
		{"read subdirectory owners", "sub/OWNERS", "bob@x.com\n", false},
		{"read nonexistent file", "nonexistent", "", true},
		{"read with leading slash", "/OWNERS", "alice@x.com\n", false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			r, err := fsys.Open(tc.path)
			if tc.expectError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer func() {
				_ = r.Close()
			}()
			content, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(content) != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, string(content))
			}
		})
	}
}

func TestRefFSVerifyRef(t *testing.T) {
	mockExec := &mockExecutor{
		outputs: map[string][]byte{
			"git rev-parse --verify --quiet goodref^{commit}": []byte("abc123\n"),
		},
		errors: map[string]error{
			"git rev-parse --verify --quiet badref^{commit}": fmt.Errorf("exit status 1"),
		},
	}

	good := &RefFS{ref: "goodref", dir: "/repo", executor: mockExec}
	if err := good.verifyRef(); err != nil {
		t.Errorf("unexpected error for a resolvable ref: %v", err)
	}

	bad := &RefFS{ref: "badref", dir: "/repo", executor: mockExec}
	err := bad.verifyRef()
	if err == nil {
		t.Fatal("expected an error for an unresolvable ref")
	}
	if !strings.Contains(err.Error(), "badref") {
		t.Errorf("error should name the ref, got %q", err.Error())
	}
}

func TestRefFSExists(t *testing.T) {
	mockExec := &mockExecutor{
		outputs: map[string][]byte{
			"git cat-file -e baseref123:OWNERS": []byte(""),
		},
		errors: map[string]error{
			"git cat-file -e baseref123:nonexistent": fmt.Errorf("file not found"),
		},
	}
	fsys := &RefFS{ref: "baseref123", dir: "/repo", executor: mockExec}

	tt := []struct {
		name     string
		path     string
		expected bool
	}{
		{"existing file", "OWNERS", true},
		{"nonexistent file", "nonexistent", false},
		{"existing file with leading slash", "/OWNERS", true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if exists := fsys.Exists(tc.path); exists != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, exists)
			}
		})
	}
}
