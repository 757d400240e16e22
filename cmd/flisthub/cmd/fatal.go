package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/oneconcern/flisthub/pkg/errors"
)

var (
	// globals used to patch over calls to os.Exit() during test

	logFatalln = log.Fatalln
	osExit     = os.Exit

	errOut io.Writer = os.Stderr
)

// wrapFatalln reports an error with its status code, then exits
func wrapFatalln(msg string, err error) {
	if err == nil {
		logFatalln(msg)
		return
	}
	_, _ = fmt.Fprintf(errOut, "error (%d): %s: %v\n", errors.Code(err), msg, err)
	osExit(1)
}
