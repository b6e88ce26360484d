// Package shell reads operator verbs from a terminal and hands them to the
// scheduler, one at a time.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yanun0323/logs"

	"spotengine/internal/scheduler"
)

const (
	Prompt     = "spotengine> "
	verbHelp   = "help"
	verbQuit   = "quit"
	ackTimeout = 2 * time.Minute
)

// Publisher accepts commands for the scheduler.
type Publisher interface {
	Publish(cmd scheduler.Command) error
}

// Shell is a line-oriented command source.
type Shell struct {
	in   io.Reader
	out  io.Writer
	sink Publisher
}

func New(in io.Reader, out io.Writer, sink Publisher) *Shell {
	return &Shell{in: in, out: out, sink: sink}
}

// Run reads lines until quit, EOF or ctx is done. Every verb waits for the
// scheduler's ack before the next prompt. A closed input returns io.EOF.
func (sh *Shell) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(sh.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		readErr <- err
	}()

	for {
		fmt.Fprint(sh.out, Prompt)
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch verb := strings.ToLower(fields[0]); verb {
			case verbQuit:
				return nil
			case verbHelp:
				sh.help()
			default:
				sh.send(ctx, scheduler.Verb(verb))
			}
		}
	}
}

func (sh *Shell) send(ctx context.Context, verb scheduler.Verb) {
	cmd := scheduler.NewCommand(verb)
	if err := sh.sink.Publish(cmd); err != nil {
		logs.Errorf("publish command %s, err: %+v", verb, err)
		return
	}

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()
	select {
	case err := <-cmd.Ack:
		if err != nil {
			fmt.Fprintf(sh.out, "%s failed: %v\n", verb, err)
			return
		}
		fmt.Fprintf(sh.out, "%s ok\n", verb)
	case <-timer.C:
		fmt.Fprintf(sh.out, "%s still running\n", verb)
	case <-ctx.Done():
	}
}

func (sh *Shell) help() {
	verbs := make([]string, 0, len(scheduler.Verbs)+2)
	for _, v := range scheduler.Verbs {
		verbs = append(verbs, string(v))
	}
	verbs = append(verbs, verbHelp, verbQuit)
	fmt.Fprintf(sh.out, "commands: %s\n", strings.Join(verbs, ", "))
}
