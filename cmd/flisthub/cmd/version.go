package cmd

import (
	"bytes"
	"io"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags
var (
	Version   string
	BuildDate string
	GitCommit string
	GitState  string
)

// VersionInfo describes the build of this binary
type VersionInfo struct {
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
	BuildDate string `json:"buildDate,omitempty" yaml:"buildDate,omitempty"`
	GitCommit string `json:"gitCommit,omitempty" yaml:"gitCommit,omitempty"`
	GitState  string `json:"gitState,omitempty" yaml:"gitState,omitempty"`
}

// NewVersionInfo from build information
func NewVersionInfo() VersionInfo {
	ver := VersionInfo{
		Version:   "dev",
		BuildDate: BuildDate,
		GitCommit: GitCommit,
	}
	if Version != "" {
		ver.Version = Version
		ver.GitState = "clean"
	}
	if GitState != "" {
		ver.GitState = GitState
	}
	return ver
}

func (v VersionInfo) String() string {
	var buf bytes.Buffer
	buf.WriteString("Version: ")
	buf.WriteString(v.Version)
	buf.WriteString("\n")
	buf.WriteString("Build date: ")
	buf.WriteString(v.BuildDate)
	buf.WriteString("\n")
	buf.WriteString("Commit: ")
	buf.WriteString(v.GitCommit)
	buf.WriteString("\n")
	buf.WriteString("Working tree: ")
	buf.WriteString(v.GitState)
	buf.WriteString("\n")
	return buf.String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "prints the version of flisthub",
	Long: `Prints the version of flisthub. It includes the following components:
	* Semver (output of git describe --tags)
	* Build Date (date at which the binary was built)
	* Git Commit (the git commit hash this binary was built from
	* Git State (when dirty there were uncommitted changes during the build)
`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := NewVersionInfo()
		if err := render(cmd.OutOrStdout(), info, FormatterFunc(func(w io.Writer, _ interface{}) error {
			_, err := io.WriteString(w, info.String())
			return err
		})); err != nil {
			wrapFatalln("version", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
