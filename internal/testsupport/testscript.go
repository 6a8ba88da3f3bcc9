// Package testsupport builds the worksession-api binary for script tests.
package testsupport

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

var (
	buildOnce sync.Once
	binPath   string
	buildErr  error
)

// BuildBinary builds the worksession-api binary once and returns its path.
func BuildBinary(t testing.TB) string {
	t.Helper()

	buildOnce.Do(func() {
		moduleRoot, err := findModuleRoot()
		if err != nil {
			buildErr = err
			return
		}

		binDir, err := os.MkdirTemp("", "worksession-bin-")
		if err != nil {
			buildErr = err
			return
		}

		binPath = filepath.Join(binDir, "worksession-api")
		cmd := exec.Command("go", "build", "-o", binPath, "./cmd/worksession-api")
		cmd.Dir = moduleRoot
		output, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("build worksession-api: %w: %s", err, strings.TrimSpace(string(output)))
		}
	})

	if buildErr != nil {
		t.Fatalf("%v", buildErr)
	}

	return binPath
}

// SetupScriptEnv points scripts at the binary and a scratch SQLite store
// with the mock models, so scripts never reach the network.
func SetupScriptEnv(t testing.TB, env *testscript.Env) error {
	t.Helper()

	env.Setenv("WORKSESSION", BuildBinary(t))
	env.Setenv("WORKSESSION_STORAGE_BACKEND", "sqlite")
	env.Setenv("WORKSESSION_SQLITE_PATH", filepath.Join(env.WorkDir, "worksession.db"))
	env.Setenv("WORKSESSION_USE_MOCK_LLM", "1")
	env.Setenv("WORKSESSION_LOG_LEVEL", "error")
	env.Setenv("WORKSESSION_GITHUB_INSPECT", "0")
	return nil
}

// CmdEnvSet stores the trimmed contents of a file in an env var.
func CmdEnvSet(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("envset does not support negation")
	}
	if len(args) != 2 {
		ts.Fatalf("usage: envset VAR FILE")
	}

	value := strings.TrimSpace(ts.ReadFile(args[1]))
	ts.Setenv(args[0], value)
}

func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find module root (go.mod)")
		}
		dir = parent
	}
}
