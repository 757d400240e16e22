// Copyright © 2018 One Concern

package cmd

import (
	"fmt"

	"github.com/oneconcern/flisthub/pkg/dlogger"
	"github.com/spf13/cobra"
)

type flagsT struct {
	root struct {
		config   string
		logLevel string
		output   string
		cpuProf  string
		memProf  string
	}
	promote struct {
		name string
	}
	info struct {
		readme bool
	}
	doc struct {
		target string
	}
}

var flisthubFlags flagsT

func addConfigFlag(cmd *cobra.Command) string {
	const config = "config"
	cmd.PersistentFlags().StringVar(&flisthubFlags.root.config, config, "",
		"Configuration file (defaults to $FLISTHUB_CONFIG, then flisthub.yaml in ., $HOME/.flisthub or /etc/flisthub)")
	return config
}

func addLogLevelFlag(cmd *cobra.Command) string {
	const logLevel = "loglevel"
	cmd.PersistentFlags().StringVar(&flisthubFlags.root.logLevel, logLevel, dlogger.LogLevelInfo,
		fmt.Sprintf("The logging level: one of %s, %s, %s, %s or %s",
			dlogger.LogLevelDebug, dlogger.LogLevelInfo, dlogger.LogLevelWarn, dlogger.LogLevelError, dlogger.LogLevelNone))
	return logLevel
}

func addOutputFlag(cmd *cobra.Command) string {
	const output = "output"
	cmd.PersistentFlags().StringVarP(&flisthubFlags.root.output, output, "o", outputText,
		fmt.Sprintf("Output format: %s, %s or %s", outputText, outputJSON, outputYAML))
	return output
}

func addPromoteNameFlag(cmd *cobra.Command) string {
	const name = "name"
	cmd.Flags().StringVar(&flisthubFlags.promote.name, name, "", "Name of the promoted flist (defaults to the source name)")
	return name
}

func addReadmeFlag(cmd *cobra.Command) string {
	const readme = "readme"
	cmd.Flags().BoolVar(&flisthubFlags.info.readme, readme, false, "Show what users need to know to fetch the flist")
	return readme
}

func addTargetFlag(cmd *cobra.Command) string {
	const target = "target"
	cmd.Flags().StringVar(&flisthubFlags.doc.target, target, "./docs/usage", "Directory where the documentation is generated")
	return target
}

func addProfilingFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&flisthubFlags.root.cpuProf, "cpuprof", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&flisthubFlags.root.memProf, "memprof", "", "Write a heap profile to this file on exit")
	_ = cmd.PersistentFlags().MarkHidden("cpuprof")
	_ = cmd.PersistentFlags().MarkHidden("memprof")
}
