package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const defaultAddr = "http://localhost:8080"

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

// usageError exits with status 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }

func usagef(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	if len(args) == 0 {
		_ = root.Usage()
		return 2
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, err.Error())
		if isUsageError(err) {
			return 2
		}
		return 1
	}
	return 0
}

type remoteOptions struct {
	addr    string
	token   string
	jsonOut bool
}

func newRootCmd(stdout io.Writer, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "counterpoint",
		Short:         "Counter-narrative and content moderation CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	opts := &remoteOptions{}
	root.PersistentFlags().StringVar(&opts.addr, "addr", envOrDefault("COUNTERPOINT_ADDR", defaultAddr), "gateway address")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("COUNTERPOINT_API_TOKEN"), "bearer token")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print raw JSON")

	st := newStyles(stdout)
	root.AddCommand(
		newDecideCmd(st),
		newThresholdsCmd(),
		newSubmitCmd(opts, st),
		newImageCmd(opts, st),
		newModerateCmd(opts, st),
		newSessionsCmd(opts, st),
		newDashboardCmd(opts, st),
	)
	return root
}

func isUsageError(err error) bool {
	var uerr usageError
	return errors.As(err, &uerr) || strings.HasPrefix(err.Error(), "unknown command")
}

// exactArgs is cobra.ExactArgs reported as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("%s requires %d argument(s), got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}

func envOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}
