package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

const shellHelp = `commands:
  load FILE              split FILE into a new list
  word WORDS...          build a list with one chunk per character
  list                   show chunks
  links                  show chunks with successor checksums
  send                   write the reduced list to the sink
  receive                show the sink content
  delete VALUE...        delete chunks by value (hex:<digits> for raw bytes)
  delete-index N...      delete chunks by position
  verify                 check chain integrity
  tamper N VALUE         overwrite chunk N without relinking
  reset                  truncate the sink
  history [N]            show recorded sends
  metrics                dump session metrics
  help                   show this help
  quit                   leave the shell`

func (a *app) shellCmd() *cobra.Command {
	var resetSink bool
	cmd := &cobra.Command{
		Use:   "shell [FILE]",
		Short: "Interactive session over one list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if resetSink {
				if err := a.sink.Reset(cmd.Context()); err != nil {
					return err
				}
			}
			if len(args) == 1 {
				if err := a.shellExec(cmd.Context(), out, []string{"load", args[0]}); err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
				}
			}
			return a.runShell(cmd.Context(), cmd.InOrStdin(), out)
		},
	}
	cmd.Flags().BoolVar(&resetSink, "reset-sink", false, "start with an empty sink file")
	return cmd
}

var errQuit = errors.New("quit")

func (a *app) runShell(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		err := a.shellExec(ctx, out, fields)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func (a *app) shellExec(ctx context.Context, out io.Writer, fields []string) error {
	s := a.session
	name, args := fields[0], fields[1:]
	switch name {
	case "quit", "exit":
		return errQuit
	case "help", "?":
		fmt.Fprintln(out, shellHelp)
	case "load":
		if len(args) != 1 {
			return ErrFileRequired
		}
		res, err := s.Load(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d chunks, %d bytes\n", res.Source, res.Chunks, res.Bytes)
	case "word":
		if len(args) == 0 {
			return ErrValueRequired
		}
		res, err := s.LoadWord(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "word: %d chunks\n", res.Chunks)
	case "list", "ls":
		printEntries(out, s.Entries(), false)
	case "links":
		printEntries(out, s.Entries(), true)
	case "send":
		fmt.Fprintln(out, "sending...")
		outcome := <-s.SendAsync(ctx)
		if outcome.Err != nil {
			return outcome.Err
		}
		printSend(out, outcome.Result)
	case "receive":
		rec, err := s.Receive(ctx)
		if err != nil {
			return err
		}
		printReceived(out, rec)
	case "delete", "rm":
		if len(args) == 0 {
			return ErrValueRequired
		}
		values, err := parseValues(args)
		if err != nil {
			return err
		}
		res, err := s.DeleteSelected(ctx, values)
		if err != nil {
			return err
		}
		printDelete(out, res)
	case "delete-index":
		if len(args) == 0 {
			return ErrValueRequired
		}
		indices, err := parseIndices(args)
		if err != nil {
			return err
		}
		res, err := s.DeleteIndices(ctx, indices)
		if err != nil {
			return err
		}
		printDelete(out, res)
	case "verify":
		if err := s.Verify(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "ok: %d chunks intact\n", s.Len())
	case "tamper":
		if len(args) != 2 {
			return fmt.Errorf("usage: tamper N VALUE")
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}
		v, err := parseValues(args[1:])
		if err != nil {
			return err
		}
		return s.Tamper(i, v[0])
	case "history":
		limit := 10
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid limit %q", args[0])
			}
			limit = n
		}
		sends, err := s.History(ctx, limit)
		if err != nil {
			return err
		}
		if a.ledger == nil {
			fmt.Fprintln(out, "ledger disabled")
			return nil
		}
		for _, rec := range sends {
			fmt.Fprintf(out, "%s  %-6s %d chunks  %d bytes  sha256=%s\n",
				rec.SentAt.Format("15:04:05"), rec.Action, rec.Chunks, rec.Size, shortSum(rec.SHA256))
		}
	case "reset":
		if err := a.sink.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "sink %s truncated\n", a.sink.Name())
	case "metrics":
		return a.metrics.Dump(out)
	default:
		return fmt.Errorf("%w: %s (try help)", ErrUnknownShell, name)
	}
	return nil
}
