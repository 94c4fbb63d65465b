// Package shellsetup prints the shell function that lets "quit and cd" change
// the calling shell's directory.
package shellsetup

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"text/template"

	"github.com/shirou/gopsutil/v4/process"
)

// ResultFile is where a mill process with the given pid leaves the directory
// the shell should change to.
func ResultFile(pid int) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("mill_result_%d.txt", pid))
}

type Config struct {
	// DetectParent names the parent process; defaults to DetectParentShellName.
	DetectParent func() string
	Getenv       func(string) string
	GOOS         string
	Executable   string
}

var (
	posixTemplate = template.Must(template.New("posix").Parse(`mill() {
    if [ "$#" -gt 0 ]; then
        command {{.Exe}} "$@"
        return $?
    fi

    command {{.Exe}} &
    mill_pid=$!
    wait $mill_pid

    result_file="${TMPDIR:-/tmp}/mill_result_$mill_pid.txt"
    if [ -f "$result_file" ] && [ ! -L "$result_file" ] && [ -O "$result_file" ]; then
        dest=$(cat "$result_file" 2>/dev/null)
        rm -f "$result_file"
        if [ -d "$dest" ] 2>/dev/null; then
            cd "$dest"
        fi
    else
        rm -f "$result_file" 2>/dev/null
    fi
}
`))

	fishTemplate = template.Must(template.New("fish").Parse(`function mill
    if test (count $argv) -gt 0
        command {{.Exe}} $argv
        return $status
    end

    command {{.Exe}} &
    set mill_pid $last_pid
    wait $mill_pid

    set tmp $TMPDIR
    test -n "$tmp"; or set tmp /tmp
    set result_file "$tmp/mill_result_$mill_pid.txt"
    if test -f "$result_file" -a ! -L "$result_file" -a -O "$result_file"
        set dest (cat "$result_file" 2>/dev/null)
        if test -d "$dest" 2>/dev/null
            builtin cd "$dest"
        end
    end
    rm -f "$result_file" 2>/dev/null
end
`))

	pwshTemplate = template.Must(template.New("pwsh").Parse(`function mill {
    param([Parameter(ValueFromRemainingArguments=$true)][string[]]$Args)
    if ($Args.Count -gt 0) {
        & {{.Exe}} @Args
        return
    }

    $process = Start-Process -FilePath {{.Exe}} -NoNewWindow -PassThru
    $process.WaitForExit()

    $resultFile = Join-Path $env:TEMP "mill_result_$($process.Id).txt"
    try {
        if (Test-Path $resultFile -PathType Leaf) {
            $dest = Get-Content $resultFile -Raw -ErrorAction SilentlyContinue | ForEach-Object { $_.Trim() }
            if ((Test-Path $dest -PathType Container) -and -not [string]::IsNullOrEmpty($dest)) {
                Set-Location $dest
            }
        }
    } finally {
        Remove-Item $resultFile -ErrorAction SilentlyContinue
    }
}
`))
)

// Write emits the integration snippet for shellOverride, or for the detected
// shell when the override is empty.
func Write(w io.Writer, shellOverride string, cfg Config) error {
	if cfg.DetectParent == nil {
		cfg.DetectParent = DetectParentShellName
	}
	if cfg.Getenv == nil {
		cfg.Getenv = os.Getenv
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if cfg.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			exe = "mill"
		}
		cfg.Executable = exe
	}

	shell := canonicalShellName(normalizeShellName(shellOverride))
	if shell == "" {
		shell = detectShellInternal(cfg.GOOS, cfg.Getenv, cfg.DetectParent)
	}

	tmpl := posixTemplate
	switch shell {
	case "fish":
		tmpl = fishTemplate
	case "pwsh":
		tmpl = pwshTemplate
	case "bash", "zsh", "sh", "ksh", "dash":
	default:
		return fmt.Errorf("unsupported shell %q", shell)
	}
	return tmpl.Execute(w, struct{ Exe string }{Exe: strconv.Quote(cfg.Executable)})
}

// DetectParentShellName returns the executable name of the parent process.
func DetectParentShellName() string {
	ppid := os.Getppid()
	if ppid <= 0 {
		return ""
	}
	proc, err := process.NewProcess(int32(ppid))
	if err != nil {
		return ""
	}
	name, err := proc.Name()
	if err != nil {
		return ""
	}
	return name
}

func detectShellInternal(goos string, getenv func(string) string, parent func() string) string {
	if shell := canonicalShellName(normalizeShellName(getenv("SHELL"))); shell != "" {
		return shell
	}

	if parent != nil {
		if shell := canonicalShellName(normalizeShellName(parent())); shell != "" {
			return shell
		}
	}

	if strings.EqualFold(goos, "windows") {
		return "pwsh"
	}
	return "bash"
}

func canonicalShellName(name string) string {
	switch name {
	case "powershell":
		return "pwsh"
	default:
		return name
	}
}

func normalizeShellName(value string) string {
	value = extractExecutable(strings.TrimSpace(value))
	if value == "" {
		return ""
	}

	value = strings.ReplaceAll(value, "\\", "/")
	base := strings.ToLower(path.Base(value))
	base = strings.TrimSuffix(base, ".exe")
	return strings.TrimPrefix(strings.TrimSpace(base), "-")
}

func extractExecutable(value string) string {
	for _, quote := range []string{`"`, `'`} {
		if rest, ok := strings.CutPrefix(value, quote); ok {
			if idx := strings.Index(rest, quote); idx >= 0 {
				return rest[:idx]
			}
			return rest
		}
	}
	if idx := strings.IndexAny(value, " \t"); idx >= 0 {
		return value[:idx]
	}
	return value
}
