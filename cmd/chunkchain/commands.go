package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kk-code-lab/chunkchain/internal/ops"
	"github.com/kk-code-lab/chunkchain/internal/session"
	"github.com/kk-code-lab/chunkchain/pkg/bytesize"
)

func (a *app) splitCmd() *cobra.Command {
	var showLinks bool
	cmd := &cobra.Command{
		Use:   "split FILE",
		Short: "Split a file into chunks and list them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.session.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entries := a.session.Entries()
			return a.emit(cmd.OutOrStdout(), entries, func(w io.Writer) error {
				fmt.Fprintf(w, "%s: %d chunks, %s\n", res.Source, res.Chunks, humanize.IBytes(uint64(res.Bytes)))
				printEntries(w, entries, showLinks)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showLinks, "links", false, "show the successor checksum of each chunk")
	return cmd
}

func (a *app) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send FILE",
		Short: "Split a file and write the reduced payload to the sink",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.session.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			res, err := a.session.Send(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), res, func(w io.Writer) error {
				printSend(w, res)
				return nil
			})
		},
	}
}

func (a *app) receiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receive",
		Short: "Show the data currently held by the sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.session.Receive(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), rec, func(w io.Writer) error {
				printReceived(w, rec)
				return nil
			})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	var indices []int
	cmd := &cobra.Command{
		Use:   "delete FILE [VALUE...]",
		Short: "Delete chunks by value (or --index) and rewrite the sink",
		Long: `Delete removes the first chunk equal to each VALUE, then writes the edited
payload to the sink. Values are UTF-8 text, or hex:<digits> for raw bytes.
--index selects chunks by position; their contents are deleted by value.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.session.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			var (
				res session.DeleteResult
				err error
			)
			switch {
			case len(indices) > 0 && len(args) > 1:
				return &exitCodeError{code: exitUsage, msg: "use either values or --index, not both"}
			case len(indices) > 0:
				res, err = a.session.DeleteIndices(cmd.Context(), indices)
			case len(args) > 1:
				values, perr := parseValues(args[1:])
				if perr != nil {
					return perr
				}
				res, err = a.session.DeleteSelected(cmd.Context(), values)
			default:
				return ErrValueRequired
			}
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), res, func(w io.Writer) error {
				printDelete(w, res)
				return nil
			})
		},
	}
	cmd.Flags().IntSliceVar(&indices, "index", nil, "chunk positions to delete (0-based)")
	return cmd
}

func (a *app) wordCmd() *cobra.Command {
	var send bool
	cmd := &cobra.Command{
		Use:   "word WORD",
		Short: "Build a list holding one chunk per character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.session.LoadWord(cmd.Context(), args[0]); err != nil {
				return err
			}
			entries := a.session.Entries()
			if !send {
				return a.emit(cmd.OutOrStdout(), entries, func(w io.Writer) error {
					printEntries(w, entries, true)
					return nil
				})
			}
			res, err := a.session.Send(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), res, func(w io.Writer) error {
				printEntries(w, entries, true)
				printSend(w, res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&send, "send", false, "also send the word to the sink")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	var against string
	cmd := &cobra.Command{
		Use:   "verify FILE",
		Short: "Check chain integrity, optionally against a received copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := ops.Runner{}
			size := int(a.cfg.ChunkSize.Bytes())
			var (
				report *ops.Report
				err    error
			)
			if against != "" {
				report, err = runner.Scrub(cmd.Context(), args[0], against, size)
			} else {
				report, err = runner.Verify(cmd.Context(), args[0], size)
			}
			if err != nil {
				return err
			}
			if a.ledger != nil {
				bad := -1
				if len(report.BadLinks) > 0 {
					bad = report.BadLinks[0]
				}
				if _, err := a.ledger.RecordVerification(cmd.Context(), args[0], report.Chunks, bad); err != nil {
					return err
				}
			}
			if err := a.emitReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.OK() {
				return &exitCodeError{code: exitCorruption, msg: "integrity check failed", quiet: true}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&against, "against", "", "received copy to check against the file's chain")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sink size and ledger counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := ops.Runner{}.Status(cmd.Context(), a.cfg.SinkPath, a.ledger)
			if err != nil {
				return err
			}
			return a.emitReport(cmd.OutOrStdout(), report)
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sends, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sends, err := a.session.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), sends, func(w io.Writer) error {
				if a.ledger == nil {
					fmt.Fprintln(w, "ledger disabled (set --ledger or ledger_path)")
					return nil
				}
				for _, s := range sends {
					fmt.Fprintf(w, "%s  %-6s %s  %d chunks  %s  sha256=%s\n",
						s.SentAt.Format("2006-01-02 15:04:05"), s.Action, s.Sink, s.Chunks,
						humanize.IBytes(uint64(s.Size)), shortSum(s.SHA256))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show (0 for all)")
	return cmd
}

// emitReport prints an ops report as JSON or as a key=value line followed
// by its error sample.
func (a *app) emitReport(w io.Writer, report *ops.Report) error {
	if a.jsonOut {
		return ops.WriteJSON(w, report)
	}
	fmt.Fprintln(w, ops.Format(report))
	for _, e := range report.ErrorSample {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return nil
}

func parseValues(args []string) ([][]byte, error) {
	values := make([][]byte, 0, len(args))
	for _, arg := range args {
		v, err := session.ParseValue(arg)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func parseIndices(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, arg := range args {
		i, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q", arg)
		}
		out = append(out, i)
	}
	return out, nil
}

func printEntries(w io.Writer, entries []session.Entry, links bool) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}
	for _, e := range entries {
		line := fmt.Sprintf("%4d  @%-8d %8s  %s", e.Index, e.Offset, bytesize.Format(int64(e.Len)), preview(e.Text))
		if links {
			next := shortSum(e.NextSum)
			if e.NextSum == "" {
				next = "-"
			}
			line += "  next=" + next
		}
		fmt.Fprintln(w, line)
	}
}

func printSend(w io.Writer, res session.SendResult) {
	fmt.Fprintf(w, "%s: wrote %s (%d chunks) to %s sha256=%s\n",
		res.Action, humanize.IBytes(uint64(res.Bytes)), res.Chunks, res.Sink, shortSum(res.SHA256))
}

func printDelete(w io.Writer, res session.DeleteResult) {
	fmt.Fprintf(w, "deleted %d of %d selected chunks\n", res.Removed, res.Requested)
	for _, m := range res.Missed {
		fmt.Fprintf(w, "  no chunk matched %q\n", session.DisplayText(m))
	}
	printSend(w, res.Send)
}

func printReceived(w io.Writer, rec session.Received) {
	fmt.Fprintf(w, "received %s from %s", humanize.IBytes(uint64(rec.Bytes)), rec.Sink)
	if rec.Matches != nil {
		if *rec.Matches {
			fmt.Fprint(w, " (matches last send)")
		} else {
			fmt.Fprint(w, " (changed since last send)")
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, rec.Text)
}

func preview(text string) string {
	const maxRunes = 48
	text = strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`).Replace(text)
	if r := []rune(text); len(r) > maxRunes {
		return string(r[:maxRunes]) + "…"
	}
	return text
}

func shortSum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
