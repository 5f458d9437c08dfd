package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/3cpo-dev/swarmlaunch/pkg/api"
)

// Recorder observes process lifecycle events.
type Recorder interface {
	ProcessStarted(c Command, pid int)
	ProcessExited(c Command, res Result)
}

// Result captures the outcome of one process.
type Result struct {
	Label    string
	Pid      int
	ExitCode int
	Duration time.Duration
	Err      error
}

type Supervisor struct {
	// BatchDelay separates consecutive start batches.
	BatchDelay time.Duration
	// Grace is how long a process has to exit after SIGINT before it is killed.
	Grace time.Duration
	// LogDir receives output of commands with api.OutputLog.
	LogDir   string
	Stdout   io.Writer
	Recorder Recorder

	mu sync.Mutex
}

type running struct {
	cmd   Command
	proc  *exec.Cmd
	out   *prefixWriter
	start time.Time
	close func()
}

// Run starts batches in order and waits for every started process to exit.
// Cancelling ctx interrupts all processes. A start failure stops the remaining
// processes and returns the error together with results gathered so far.
func (s *Supervisor) Run(ctx context.Context, batches [][]Command) ([]Result, error) {
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		resMu    sync.Mutex
		results  []Result
		startErr error
	)

	wait := func(r *running) {
		defer wg.Done()
		err := r.proc.Wait()
		r.out.Flush()
		r.close()
		res := Result{Label: r.cmd.Label, Pid: r.proc.Process.Pid, Duration: time.Since(r.start)}
		if err != nil {
			res.Err = err
			var exit *exec.ExitError
			if errors.As(err, &exit) {
				res.ExitCode = exit.ExitCode()
			} else {
				res.ExitCode = 1
			}
		}
		log.Info().Str("process", res.Label).Int("pid", res.Pid).Int("exit_code", res.ExitCode).Dur("uptime", res.Duration).Msg("process exited")
		if s.Recorder != nil {
			s.Recorder.ProcessExited(r.cmd, res)
		}
		resMu.Lock()
		results = append(results, res)
		resMu.Unlock()
	}

batches:
	for i, batch := range batches {
		if i > 0 && s.BatchDelay > 0 {
			select {
			case <-runCtx.Done():
				break batches
			case <-time.After(s.BatchDelay):
			}
		}
		for _, c := range batch {
			if runCtx.Err() != nil {
				break batches
			}
			r, err := s.start(runCtx, c)
			if err != nil {
				startErr = fmt.Errorf("start %s: %w", c.Label, err)
				cancel()
				break batches
			}
			wg.Add(1)
			go wait(r)
		}
		log.Debug().Int("batch", i).Int("processes", len(batch)).Msg("batch started")
	}

	wg.Wait()
	return results, startErr
}

func (s *Supervisor) start(ctx context.Context, c Command) (*running, error) {
	if len(c.Args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	proc := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	proc.Env = append(os.Environ(), c.Env...)
	proc.Cancel = func() error { return proc.Process.Signal(os.Interrupt) }
	proc.WaitDelay = s.Grace

	r := &running{cmd: c, proc: proc, start: time.Now(), close: func() {}}
	switch c.Output {
	case api.OutputLog:
		if err := os.MkdirAll(s.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("mkdir log dir: %w", err)
		}
		name := fmt.Sprintf("%03d_%s.log", c.Seq, strings.ReplaceAll(c.Label, "/", "_"))
		f, err := os.Create(filepath.Join(s.LogDir, name))
		if err != nil {
			return nil, fmt.Errorf("create log: %w", err)
		}
		r.out = &prefixWriter{mu: &s.mu, out: f}
		r.close = func() { _ = f.Close() }
	default:
		r.out = &prefixWriter{mu: &s.mu, out: s.Stdout, prefix: "[" + c.Label + "] "}
	}
	proc.Stdout = r.out
	proc.Stderr = r.out

	if err := proc.Start(); err != nil {
		r.close()
		return nil, err
	}
	log.Info().Str("process", c.Label).Int("pid", proc.Process.Pid).Msg("process started")
	if s.Recorder != nil {
		s.Recorder.ProcessStarted(c, proc.Process.Pid)
	}
	return r, nil
}

// prefixWriter writes whole lines, each prefixed, under a shared lock so output
// from concurrent processes does not interleave mid-line.
type prefixWriter struct {
	mu     *sync.Mutex
	out    io.Writer
	prefix string
	buf    []byte
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if err := w.emit(w.buf[:i+1]); err != nil {
			return len(p), err
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush writes a trailing partial line.
func (w *prefixWriter) Flush() {
	if len(w.buf) == 0 {
		return
	}
	_ = w.emit(append(w.buf, '\n'))
	w.buf = nil
}

func (w *prefixWriter) emit(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.out, w.prefix+string(line))
	return err
}
