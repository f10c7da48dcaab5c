package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/CodePrep/backend/internal/catalog"
	"github.com/GriffinCanCode/CodePrep/backend/internal/playground"
	"github.com/GriffinCanCode/CodePrep/backend/internal/sandbox"
)

// errFault marks a run that ended with a fault; its message is already printed
var errFault = errors.New("run faulted")

type runOptions struct {
	ui           bool
	question     string
	timeout      time.Duration
	asyncTimeout time.Duration
	html         bool
	json         bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	defaults := sandbox.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "run [FILE|-]",
		Short: "Execute a source file in a fresh playground",
		Long: `Runs FILE (or stdin when FILE is "-") once, prints console output as it
arrives and waits for pending timers. Exits non-zero when the run faults.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("catalog")
			return runSource(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), dir, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ui, "ui", false, "Compile as UI code (JSX)")
	cmd.Flags().StringVarP(&opts.question, "question", "q", "", "Run the starter source of a catalog question")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaults.Timeout, "Budget for the synchronous phase")
	cmd.Flags().DurationVar(&opts.asyncTimeout, "async-timeout", defaults.AsyncTimeout, "How long timers may keep firing")
	cmd.Flags().BoolVar(&opts.html, "html", false, "Print the rendered HTML after the run")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the final snapshot as JSON instead of plain output")
	return cmd
}

func runSource(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, catalogDir string, args []string, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var pgOpts []playground.Option
	var source string
	switch {
	case opts.question != "":
		cat, err := catalog.Load(catalogDir)
		if err != nil {
			return err
		}
		starter, mode, err := cat.Starter(opts.question)
		if err != nil {
			return err
		}
		source = starter
		if mode != sandbox.ModeAuto {
			pgOpts = append(pgOpts, playground.WithMode(mode))
		}
	case len(args) == 1:
		raw, err := readSource(stdin, args[0])
		if err != nil {
			return err
		}
		source = raw
	default:
		return errors.New("a FILE argument or --question is required")
	}

	cfg := sandbox.DefaultConfig()
	cfg.Timeout = opts.timeout
	cfg.AsyncTimeout = opts.asyncTimeout
	pgOpts = append(pgOpts, playground.WithExecutor(sandbox.New(cfg)))

	p := playground.New(source, opts.ui, pgOpts...)
	defer p.Close()

	var mu sync.Mutex
	if !opts.json {
		unsubscribe := p.Subscribe(func(ev playground.Event) {
			if ev.Type != playground.EventOutput {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			printRecord(stdout, *ev.Record)
		})
		defer unsubscribe()
	}

	if _, err := p.Run(ctx); err != nil {
		return err
	}
	p.Wait()

	snap := p.Snapshot()
	mu.Lock()
	defer mu.Unlock()

	if opts.json {
		raw, err := sonic.ConfigStd.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(raw))
	} else if opts.html && snap.HTML != "" {
		fmt.Fprintln(stdout, snap.HTML)
	}

	if snap.Fault != nil {
		fmt.Fprintf(stderr, "%s fault: %s\n", snap.Fault.Stage, snap.Fault.Message)
		return errFault
	}
	return nil
}

func readSource(stdin io.Reader, name string) (string, error) {
	var raw []byte
	var err error
	if name == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read source: %w", err)
	}
	if !isText(raw) {
		return "", fmt.Errorf("%s is not a text file", name)
	}
	return string(raw), nil
}

// isText reports whether raw sniffs as some text/plain descendant
func isText(raw []byte) bool {
	if len(raw) == 0 {
		return true
	}
	for mt := mimetype.Detect(raw); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}

func printRecord(w io.Writer, rec sandbox.OutputRecord) {
	switch rec.Kind {
	case sandbox.KindLog:
		fmt.Fprintln(w, rec.Content)
	default:
		fmt.Fprintf(w, "[%s] %s\n", rec.Kind, rec.Content)
	}
}
