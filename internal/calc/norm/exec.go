package norm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"webnorm/internal/geochem"
)

// DefaultScript is the bundled pyrolite bridge, relative to the working
// directory or to the directory of the running binary.
const DefaultScript = "scripts/cipw_engine.py"

// DefaultCommand runs DefaultScript with the first python3 on PATH.
func DefaultCommand() []string {
	exeDir := ""
	if exe, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exe)
	}
	return []string{"python3", scriptPath(DefaultScript, exeDir)}
}

// scriptPath prefers the script under the working directory. Services
// usually start elsewhere, so it falls back to the binary's directory.
func scriptPath(rel, exeDir string) string {
	if _, err := os.Stat(rel); err == nil || exeDir == "" {
		return rel
	}
	return filepath.Join(exeDir, rel)
}

// ExecEngine runs the norm library in a child process. The request is
// written to stdin and the table is read back from stdout.
type ExecEngine struct {
	Command []string
	Env     []string
}

func NewExecEngine(command string) *ExecEngine {
	args := strings.Fields(command)
	if len(args) == 0 {
		args = DefaultCommand()
	}
	return &ExecEngine{Command: args}
}

func (e *ExecEngine) Norm(ctx context.Context, t *geochem.Table, opts Options) (*geochem.Table, error) {
	if len(e.Command) == 0 {
		return nil, fmt.Errorf("%w: no command configured", ErrEngine)
	}
	in, err := json.Marshal(newRequest(t, opts))
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.Command[0], e.Command[1:]...)
	if e.Env != nil {
		cmd.Env = e.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(in)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrEngine, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrEngine, msg)
	}

	var out engineResponse
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("%w: decode output: %v", ErrEngine, err)
	}
	return out.table(t.Len())
}
