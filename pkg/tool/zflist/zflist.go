// Package zflist drives the external zflist binary.
//
// Every call runs the binary once, with --json output, and decodes the
// envelope it prints on stdout:
//
//	{"success": true, "error": {"message": "..."}, "response": {...}}
package zflist

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/flisthub/pkg/dlogger"
	"github.com/oneconcern/flisthub/pkg/flist"
	"github.com/oneconcern/flisthub/pkg/tool"
	"github.com/oneconcern/flisthub/pkg/tool/status"
	"go.uber.org/zap"
)

// DefaultBinary is where zflist is usually installed
const DefaultBinary = "/opt/0-flist/zflist/zflist"

var _ tool.Tool = &Tool{}

type (
	// Tool runs zflist
	Tool struct {
		binary string
		l      *zap.Logger
	}

	// Option for the zflist tool
	Option func(*Tool)

	envelope struct {
		Success bool `json:"success"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
		Response jsoniter.RawMessage `json:"response"`
	}

	listEntry struct {
		Path string `json:"path"`
		Size int64  `json:"size"`
		Type string `json:"type"`
	}

	listResponse struct {
		Content   []listEntry `json:"content"`
		Regular   int         `json:"regular"`
		Directory int         `json:"directory"`
		Symlink   int         `json:"symlink"`
		Special   int         `json:"special"`
	}

	checkResponse struct {
		Missing []string `json:"missing"`
		Checked int      `json:"checked"`
	}
)

// WithLogger sets a logger
func WithLogger(l *zap.Logger) Option {
	return func(z *Tool) {
		if l != nil {
			z.l = l
		}
	}
}

// New zflist tool running some binary
func New(binary string, opts ...Option) *Tool {
	if binary == "" {
		binary = DefaultBinary
	}
	z := &Tool{
		binary: binary,
		l:      dlogger.MustGetLogger("info"),
	}
	for _, apply := range opts {
		apply(z)
	}
	return z
}

// Build an archive with zflist --create
func (z *Tool) Build(ctx context.Context, req tool.BuildRequest) (tool.BuildResult, error) {
	if err := req.Validate(); err != nil {
		return tool.BuildResult{}, err
	}

	args := []string{"--create", req.RootDir, "--archive", req.Output, "--backend", req.Backend.Address, "--json"}
	if req.Backend.Password != "" {
		args = append(args, "--password", req.Backend.Password)
	}

	response, err := z.run(ctx, args...)
	if err != nil {
		return tool.BuildResult{}, err
	}

	var result tool.BuildResult
	if len(response) > 0 {
		if err = jsoniter.Unmarshal(response, &result); err != nil {
			return tool.BuildResult{}, status.ErrToolFailure.Wrap(fmt.Errorf("unexpected build response: %w", err))
		}
	}
	result.Success = true
	return result, nil
}

// Merge archives with zflist --merge
func (z *Tool) Merge(ctx context.Context, target string, sources []string) error {
	if err := tool.ValidateMergeRequest(target, sources); err != nil {
		return err
	}

	args := []string{"--archive", target, "--json"}
	for _, source := range sources {
		args = append(args, "--merge", source)
	}

	_, err := z.run(ctx, args...)
	return err
}

// List the content of an archive with zflist --list --action json
func (z *Tool) List(ctx context.Context, archive string) (flist.Listing, error) {
	response, err := z.run(ctx, "--list", "--action", "json", "--archive", archive)
	if err != nil {
		return flist.Listing{}, err
	}

	var wire listResponse
	if err = jsoniter.Unmarshal(response, &wire); err != nil {
		return flist.Listing{}, status.ErrToolFailure.Wrap(fmt.Errorf("unexpected listing response: %w", err))
	}

	listing := flist.Listing{
		Content:   make([]flist.ListEntry, 0, len(wire.Content)),
		Regular:   wire.Regular,
		Directory: wire.Directory,
		Symlink:   wire.Symlink,
		Special:   wire.Special,
	}
	for _, e := range wire.Content {
		var kind flist.Kind
		if err = kind.UnmarshalText([]byte(e.Type)); err != nil {
			return flist.Listing{}, status.ErrToolFailure.Wrap(fmt.Errorf("entry %s: %w", e.Path, err))
		}
		listing.Content = append(listing.Content, flist.ListEntry{Path: e.Path, Size: e.Size, Kind: kind})
	}
	return listing, nil
}

// Check the backend coverage of an archive with zflist --list --action check
func (z *Tool) Check(ctx context.Context, archive string, backend tool.Backend) (flist.Result, error) {
	response, err := z.run(ctx, "--list", "--action", "check", "--archive", archive, "--backend", backend.Address, "--json")
	if err != nil {
		return flist.Result{}, err
	}

	var wire checkResponse
	if len(response) > 0 {
		if err = jsoniter.Unmarshal(response, &wire); err != nil {
			return flist.Result{}, status.ErrToolFailure.Wrap(fmt.Errorf("unexpected check response: %w", err))
		}
	}
	if wire.Missing == nil {
		wire.Missing = []string{}
	}
	return flist.Result{
		Complete: len(wire.Missing) == 0,
		Missing:  wire.Missing,
		Checked:  wire.Checked,
	}, nil
}

// run the binary and decode its response envelope
func (z *Tool) run(ctx context.Context, args ...string) (jsoniter.RawMessage, error) {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, z.binary, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	z.l.Debug("running zflist", zap.String("binary", z.binary), zap.Strings("args", redact(args)))
	runErr := command.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, status.ErrToolFailure.Wrap(ctxErr)
	}

	var env envelope
	if err := jsoniter.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &env); err != nil {
		if runErr != nil {
			return nil, status.ErrToolFailure.Wrap(fmt.Errorf("zflist %s: %w (stderr: %s)",
				args[0], runErr, strings.TrimSpace(stderr.String())))
		}
		return nil, status.ErrToolFailure.Wrap(fmt.Errorf("zflist %s: unreadable output: %w", args[0], err))
	}

	if !env.Success {
		msg := "unknown error"
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return nil, status.ErrToolFailure.Wrap(fmt.Errorf("%s", msg))
	}

	if runErr != nil {
		z.l.Warn("zflist reported success but exited with an error", zap.Error(runErr))
	}
	return env.Response, nil
}

func redact(args []string) []string {
	redacted := make([]string, len(args))
	copy(redacted, args)
	for i := 0; i < len(redacted)-1; i++ {
		if redacted[i] == "--password" {
			redacted[i+1] = "*****"
		}
	}
	return redacted
}
