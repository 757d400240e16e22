// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/oneconcern/flisthub/internal"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flisthub",
	Short: "flisthub manages a public repository of flist archives",
	Long: `flisthub manages a public repository of flist archives.

An flist is a compact index of a filesystem tree: the file contents live on a
content-addressable backend, while the archive only holds metadata and block hashes.

flisthub converts uploaded tarballs into flists, merges flists together, and
manages user namespaces: promotion, symbolic links, renames and checksums.
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		p, err := internal.StartProfiler(flisthubFlags.root.cpuProf, flisthubFlags.root.memProf, nil)
		if err != nil {
			wrapFatalln("profiling", err)
			return
		}
		profiler = p
	},
	// upstream api note:  *PostRun functions aren't called in case of a panic() in Run
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := profiler.Stop(); err != nil {
			log.Println("profiling:", err)
		}
	},
}

var profiler *internal.Profiler

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addConfigFlag(rootCmd)
	addLogLevelFlag(rootCmd)
	addOutputFlag(rootCmd)
	addProfilingFlags(rootCmd)
}
