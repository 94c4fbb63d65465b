package shellsetup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetectShellInternal(t *testing.T) {
	tests := []struct {
		name          string
		goos          string
		envShell      string
		parent        func() string
		expectedShell string
	}{
		{
			name:          "uses SHELL when set",
			goos:          "linux",
			envShell:      "/bin/zsh",
			expectedShell: "zsh",
		},
		{
			name:          "falls back to parent shell",
			goos:          "linux",
			parent:        func() string { return "/usr/bin/bash" },
			expectedShell: "bash",
		},
		{
			name:          "login shell dash prefix",
			goos:          "darwin",
			parent:        func() string { return "-zsh" },
			expectedShell: "zsh",
		},
		{
			name:          "windows powershell parent",
			goos:          "windows",
			parent:        func() string { return `C:\Program Files\PowerShell\powershell.exe` },
			expectedShell: "pwsh",
		},
		{
			name:          "windows fallback",
			goos:          "windows",
			expectedShell: "pwsh",
		},
		{
			name:          "unix fallback",
			goos:          "linux",
			expectedShell: "bash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := func(key string) string {
				if key == "SHELL" {
					return tt.envShell
				}
				return ""
			}
			got := detectShellInternal(tt.goos, env, tt.parent)
			if got != tt.expectedShell {
				t.Fatalf("detectShellInternal() = %q, want %q", got, tt.expectedShell)
			}
		})
	}
}

func TestWriteUsesResultFileContract(t *testing.T) {
	cfg := Config{
		DetectParent: func() string { return "" },
		Getenv:       func(string) string { return "" },
		GOOS:         "linux",
		Executable:   "/usr/local/bin/mill",
	}

	for _, shell := range []string{"bash", "fish", "pwsh"} {
		var out strings.Builder
		if err := Write(&out, shell, cfg); err != nil {
			t.Fatalf("%s: %v", shell, err)
		}
		script := out.String()
		if !strings.Contains(script, "mill_result_") {
			t.Fatalf("%s: expected result file name in script:\n%s", shell, script)
		}
		if !strings.Contains(script, `"/usr/local/bin/mill"`) {
			t.Fatalf("%s: expected quoted executable in script:\n%s", shell, script)
		}
	}
}

func TestWriteRejectsUnknownShell(t *testing.T) {
	var out strings.Builder
	if err := Write(&out, "tcsh", Config{Executable: "mill"}); err == nil {
		t.Fatalf("expected error for unsupported shell")
	}
}

func TestResultFileLivesInTempDir(t *testing.T) {
	got := ResultFile(42)
	if filepath.Dir(got) != filepath.Clean(os.TempDir()) || filepath.Base(got) != "mill_result_42.txt" {
		t.Fatalf("unexpected result file %q", got)
	}
}
