// Package executor implements C5: running one registered step as an
// external process, applying the pre- and post-step store patches, and
// translating process outcome into the controller's error vocabulary.
//
// Grounded on subprocess/logging.go's stdout/stderr streaming pattern,
// adapted here to capture stderr into a bounded buffer (for
// StepFailureError reporting) instead of mirroring it to os.Stderr, since
// a step's failure detail belongs in the per-record log line, not the
// controller's own process output.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	ctlerrors "github.com/ffbk-dev/autolog-controller/errors"
	"github.com/ffbk-dev/autolog-controller/log"
)

// maxCapturedStderr bounds how much of a failing step's stderr is kept
// for the failure report; processes that misbehave and dump megabytes to
// stderr must not make a single step failure expensive to log.
const maxCapturedStderr = 64 * 1024

// Runner invokes one step script out-of-process. A real Runner shells out
// via os/exec; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, scriptPath string, args []string, timeout time.Duration) error
}

// ProcessRunner runs step scripts as child processes, discarding stdout
// and capturing the first maxCapturedStderr bytes of stderr for failure
// reports; anything past that limit is dropped.
type ProcessRunner struct{}

func (ProcessRunner) Run(ctx context.Context, scriptPath string, args []string, timeout time.Duration) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(stepCtx, scriptPath, args...)

	var stderr bytes.Buffer
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("opening stderr pipe for %s: %w", scriptPath, err)
	}
	cmd.Stdout = io.Discard

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", scriptPath, err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(&boundedWriter{buf: &stderr, limit: maxCapturedStderr}, stderrPipe)
		close(done)
	}()
	<-done

	err = cmd.Wait()
	if stepCtx.Err() == context.DeadlineExceeded {
		return ctlerrors.StepTimeoutError{Step: filepath.Base(scriptPath)}
	}
	if err != nil {
		return ctlerrors.StepFailureError{Step: filepath.Base(scriptPath), Stderr: stderr.String()}
	}
	return nil
}

type boundedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	if w.buf.Len() < w.limit {
		remaining := w.limit - w.buf.Len()
		if remaining > len(p) {
			remaining = len(p)
		}
		w.buf.Write(p[:remaining])
	}
	return len(p), nil
}

// Patcher is the subset of the store client the executor needs to apply
// pre/final status patches.
type Patcher interface {
	PatchFields(ctx context.Context, layout, recordKey string, fields map[string]interface{}) error
}

// Step describes one invocation: the script to run, the record it
// targets, and the patches to apply around it.
type Step struct {
	Layout      string
	RecordKey   string
	RecordID    string
	Script      string
	StatusField string
	PreStatus   string // written before the script runs; empty means "skip"
	FinalStatus string // written only on success
	Timeout     time.Duration
	AuthToken   string
	ExtraArgs   []string

	// CorrelationID ties this invocation's log lines back to the
	// dispatching task, mirroring the pack's request-id stamping.
	CorrelationID string
}

// Executor runs registered steps against real record keys.
type Executor struct {
	ScriptDir string
	Patcher   Patcher
	Runner    Runner

	// StepDuration is optional; when set, every invocation's wall-clock
	// time is observed against it labeled by script name.
	StepDuration *prometheus.HistogramVec
}

func New(scriptDir string, patcher Patcher, runner Runner) *Executor {
	if runner == nil {
		runner = ProcessRunner{}
	}
	return &Executor{ScriptDir: scriptDir, Patcher: patcher, Runner: runner}
}

// Run applies the pre-status patch (if any), invokes the script with
// (record_id, auth_token) as its positional arguments, and — only on
// success — applies the final-status patch. The pre-status patch is
// applied unconditionally before invocation so a crash mid-step leaves
// the record visibly "in progress" rather than silently stuck at its
// prior resting state, matching the source's write-then-run ordering.
func (e *Executor) Run(ctx context.Context, step Step) error {
	if step.PreStatus != "" {
		if err := e.Patcher.PatchFields(ctx, step.Layout, step.RecordKey, map[string]interface{}{
			step.StatusField: step.PreStatus,
		}); err != nil {
			return fmt.Errorf("patching pre-status for %s: %w", step.RecordID, err)
		}
	}

	scriptPath := filepath.Join(e.ScriptDir, step.Script)
	args := append([]string{step.RecordID, step.AuthToken}, step.ExtraArgs...)

	runStart := time.Now()
	runErr := e.Runner.Run(ctx, scriptPath, args, step.Timeout)
	if e.StepDuration != nil {
		e.StepDuration.WithLabelValues(step.Script).Observe(time.Since(runStart).Seconds())
	}
	if runErr != nil {
		log.LogError(step.RecordID, "step failed", runErr, "script", step.Script, "correlation_id", step.CorrelationID)
		return runErr
	}

	if step.FinalStatus != "" {
		if err := e.Patcher.PatchFields(ctx, step.Layout, step.RecordKey, map[string]interface{}{
			step.StatusField: step.FinalStatus,
		}); err != nil {
			return fmt.Errorf("patching final status for %s: %w", step.RecordID, err)
		}
	}

	log.Log(step.RecordID, "step succeeded", "script", step.Script, "correlation_id", step.CorrelationID)
	return nil
}

// SetAwaitingUserInput patches a single record's status field to
// "Awaiting User Input", used by the LF-gate and step-4 quality-gate
// diversions for both the footage and each of its cached children.
func (e *Executor) SetAwaitingUserInput(ctx context.Context, layout, recordKey, statusField, awaitingValue string) error {
	return e.Patcher.PatchFields(ctx, layout, recordKey, map[string]interface{}{
		statusField: awaitingValue,
	})
}
