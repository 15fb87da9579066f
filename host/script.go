package host

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("tether.host")

const scriptEndMarker = "__TETHER_EVAL_END__"

// ScriptRunner evaluates snippets in a secondary interpreter. The
// interpreter runs as a persistent subprocess so state (variables,
// function definitions) survives across evaluations. Output is framed
// with a marker line carrying the snippet's exit status.
//
// The interpreter must be sh-compatible enough to execute an `echo`
// after each snippet. Snippets are expected to terminate on their own.
type ScriptRunner struct {
	argv []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// NewScriptRunner creates a runner for the given interpreter command
// line. With no arguments it runs /bin/sh.
func NewScriptRunner(argv ...string) *ScriptRunner {
	if len(argv) == 0 {
		argv = []string{"/bin/sh"}
	}
	return &ScriptRunner{argv: argv}
}

// ensureProcess starts the interpreter on first use, or after a pipe
// failure tore the previous one down.
func (r *ScriptRunner) ensureProcess() error {
	if r.cmd != nil {
		return nil
	}
	cmd := exec.Command(r.argv[0], r.argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("interpreter stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("interpreter stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start interpreter %q: %w", r.argv[0], err)
	}
	r.cmd = cmd
	r.stdin = stdin
	r.stdout = bufio.NewReader(stdout)
	log.Infof("started interpreter %s (pid %d)", strings.Join(r.argv, " "), cmd.Process.Pid)
	return nil
}

// Eval runs one snippet and returns its combined output with the
// trailing newline trimmed. A non-zero exit status is an error carrying
// the output.
func (r *ScriptRunner) Eval(source string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureProcess(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(r.stdin, "%s\necho \"%s$?\"\n", source, scriptEndMarker); err != nil {
		r.teardown()
		return "", fmt.Errorf("write to interpreter: %w", err)
	}
	var lines []string
	for {
		line, err := r.stdout.ReadString('\n')
		if err != nil {
			r.teardown()
			return "", fmt.Errorf("read from interpreter: %w", err)
		}
		line = strings.TrimRight(line, "\n")
		if !strings.HasPrefix(line, scriptEndMarker) {
			lines = append(lines, line)
			continue
		}
		output := strings.Join(lines, "\n")
		status, err := strconv.Atoi(strings.TrimPrefix(line, scriptEndMarker))
		if err != nil {
			return "", fmt.Errorf("bad status marker %q", line)
		}
		if status != 0 {
			if output == "" {
				return "", fmt.Errorf("script exited with status %d", status)
			}
			return "", fmt.Errorf("script exited with status %d: %s", status, output)
		}
		return output, nil
	}
}

// teardown kills a wedged interpreter so the next Eval starts fresh.
func (r *ScriptRunner) teardown() {
	if r.cmd != nil && r.cmd.Process != nil {
		r.cmd.Process.Kill()
		r.cmd.Wait()
	}
	r.cmd = nil
	r.stdin = nil
	r.stdout = nil
}

// Close shuts the interpreter down by closing its stdin and waiting for
// exit. The runner can be reused; the next Eval restarts it.
func (r *ScriptRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return nil
	}
	r.stdin.Close()
	err := r.cmd.Wait()
	r.cmd = nil
	r.stdin = nil
	r.stdout = nil
	return err
}
