package zflist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oneconcern/flisthub/pkg/errors"
	"github.com/oneconcern/flisthub/pkg/flist"
	"github.com/oneconcern/flisthub/pkg/tool"
	"github.com/oneconcern/flisthub/pkg/tool/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeZflist writes a script standing for the zflist binary.
//
// The script records its arguments and prints a canned output for the first argument it receives.
func fakeZflist(t testing.TB, outputs map[string]string, exitCode int) (string, string) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")

	var script strings.Builder
	fmt.Fprintf(&script, "#!/bin/sh\necho \"$@\" > %q\n", argsFile)
	script.WriteString("case \"$1\" in\n")
	for arg, output := range outputs {
		fmt.Fprintf(&script, "  %s)\n    cat <<'JSON'\n%s\nJSON\n    ;;\n", arg, output)
	}
	script.WriteString("esac\n")
	fmt.Fprintf(&script, "echo 'some diagnostic' >&2\nexit %d\n", exitCode)

	bin := filepath.Join(dir, "zflist")
	require.NoError(t, os.WriteFile(bin, []byte(script.String()), 0o700))
	return bin, argsFile
}

func recordedArgs(t testing.TB, argsFile string) string {
	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func TestBuild(t *testing.T) {
	bin, argsFile := fakeZflist(t, map[string]string{
		"--create": `{"success": true, "error": null, "response": {"regular": 3, "directory": 2, "symlink": 1, "special": 0, "failure": 1, "size": 4096, "errors": ["/etc/shadow: permission denied"]}}`,
	}, 0)
	z := New(bin, WithLogger(zap.NewNop()))

	result, err := z.Build(context.Background(), tool.BuildRequest{
		RootDir: "/tmp/root",
		Output:  "/tmp/out.flist",
		Backend: tool.Backend{Address: "127.0.0.1:9900", Password: "secret"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 6, result.EntryCount())
	assert.Equal(t, 1, result.Failure)
	assert.Equal(t, int64(4096), result.Size)
	assert.Equal(t, []string{"/etc/shadow: permission denied"}, result.Errors)

	assert.Equal(t,
		"--create /tmp/root --archive /tmp/out.flist --backend 127.0.0.1:9900 --json --password secret",
		recordedArgs(t, argsFile))
}

func TestBuildFailure(t *testing.T) {
	bin, _ := fakeZflist(t, map[string]string{
		"--create": `{"success": false, "error": {"message": "backend: connection refused"}, "response": null}`,
	}, 1)
	z := New(bin, WithLogger(zap.NewNop()))

	_, err := z.Build(context.Background(), tool.BuildRequest{RootDir: "/r", Output: "/o", Backend: tool.Backend{Address: "h:1"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrToolFailure))
	assert.Contains(t, err.Error(), "backend: connection refused")
	assert.Equal(t, 502, errors.Code(err))
}

func TestCrashWithoutOutput(t *testing.T) {
	bin, _ := fakeZflist(t, map[string]string{}, 3)
	z := New(bin, WithLogger(zap.NewNop()))

	err := z.Merge(context.Background(), "/tmp/t.flist", []string{"/a.flist"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrToolFailure))
	assert.Contains(t, err.Error(), "some diagnostic")
}

func TestMissingBinary(t *testing.T) {
	z := New(filepath.Join(t.TempDir(), "nope"), WithLogger(zap.NewNop()))
	_, err := z.List(context.Background(), "/tmp/a.flist")
	assert.True(t, errors.Is(err, status.ErrToolFailure))
}

func TestMerge(t *testing.T) {
	bin, argsFile := fakeZflist(t, map[string]string{
		"--archive": `{"success": true, "error": null, "response": {}}`,
	}, 0)
	z := New(bin, WithLogger(zap.NewNop()))

	require.NoError(t, z.Merge(context.Background(), "/tmp/t.flist", []string{"/pub/alice/base.flist", "/pub/alice/patch.flist"}))
	assert.Equal(t,
		"--archive /tmp/t.flist --json --merge /pub/alice/base.flist --merge /pub/alice/patch.flist",
		recordedArgs(t, argsFile))

	assert.Error(t, z.Merge(context.Background(), "/tmp/t.flist", nil))
}

func TestListAndCheck(t *testing.T) {
	bin, argsFile := fakeZflist(t, map[string]string{
		"--list": `{"success": true, "error": null, "response": {"content": [{"path": "/", "size": 0, "type": "directory"}, {"path": "/a", "size": 12, "type": "regular"}], "regular": 1, "directory": 1, "symlink": 0, "special": 0}}`,
	}, 0)
	z := New(bin, WithLogger(zap.NewNop()))

	listing, err := z.List(context.Background(), "/tmp/a.flist")
	require.NoError(t, err)
	assert.Equal(t, 2, listing.Total())
	assert.Equal(t, []flist.ListEntry{
		{Path: "/", Kind: flist.KindDirectory},
		{Path: "/a", Size: 12, Kind: flist.KindRegular},
	}, listing.Content)
	assert.Equal(t, "--list --action json --archive /tmp/a.flist", recordedArgs(t, argsFile))

	// the same canned output doesn't carry any missing hash
	result, err := z.Check(context.Background(), "/tmp/a.flist", tool.Backend{Address: "hub:9900"})
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Equal(t, "--list --action check --archive /tmp/a.flist --backend hub:9900 --json", recordedArgs(t, argsFile))
}

func TestCheckMissing(t *testing.T) {
	bin, _ := fakeZflist(t, map[string]string{
		"--list": `{"success": true, "error": null, "response": {"missing": ["abc", "def"], "checked": 10}}`,
	}, 0)
	z := New(bin, WithLogger(zap.NewNop()))

	result, err := z.Check(context.Background(), "/tmp/a.flist", tool.Backend{Address: "hub:9900"})
	require.NoError(t, err)
	assert.False(t, result.Complete)
	assert.Equal(t, []string{"abc", "def"}, result.Missing)
	assert.Equal(t, 10, result.Checked)
}

func TestRedact(t *testing.T) {
	args := []string{"--create", "/r", "--password", "secret"}
	assert.Equal(t, []string{"--create", "/r", "--password", "*****"}, redact(args))
	assert.Equal(t, "secret", args[3])
}
