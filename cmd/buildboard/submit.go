package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/proverops/buildboard/pkg/submit"
)

// Exit codes of the submit command. A rejected submission (any non-200
// response) is distinguished from a transport failure so CI jobs can
// tell "the server said no" from "the server was unreachable".
const (
	exitTransportFailure = 1
	exitServerRejected   = 2
)

var submitCmd = &cobra.Command{
	Use:   "submit <url> <secret>",
	Short: "Sign a build report from stdin and post it",
	Long: `Read a build report payload from standard input, sign it with
HMAC-SHA256 under the shared secret, and POST it form-encoded to the
given submission URL.

Exits 0 on success, 2 when the server rejects the submission, and 1 on
transport failure.`,
	Args: cobra.ExactArgs(2),
	Run:  runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) {
	endpoint, secret := args[0], args[1]

	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Printf("Failed: %v\n", err)
		os.Exit(exitTransportFailure)
	}

	sub := submit.NewSubmitter(log)

	err = sub.Submit(cmd.Context(), endpoint, secret, payload)
	if err == nil {
		fmt.Printf("Successfully submitted job details to %s\n", endpoint)

		return
	}

	var statusErr *submit.StatusError
	if errors.As(err, &statusErr) {
		fmt.Printf("Failed: %s\n%s\n", statusErr.Status, statusErr.Body)
		os.Exit(exitServerRejected)
	}

	fmt.Printf("Failed: %v\n", err)
	os.Exit(exitTransportFailure)
}
