package pwdriver

import (
	"fmt"
	"os/exec"
)

// process wraps the externally launched Chrome OS process.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// startProcess launches the browser bootstrap command and watches it so
// Alive never consults the OS.
func startProcess(command string) (*process, error) {
	cmd := exec.Command(command)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch browser command %q: %w", command, err)
	}

	p := &process{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

func (p *process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Terminate kills the process. Idempotent: a process that already exited is
// not an error.
func (p *process) Terminate() error {
	if !p.Alive() {
		return nil
	}

	if err := p.cmd.Process.Kill(); err != nil {
		if !p.Alive() {
			return nil
		}
		return fmt.Errorf("kill browser process: %w", err)
	}

	<-p.done
	return nil
}
