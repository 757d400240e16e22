package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v2"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// Formatter renders command results
type Formatter interface {
	Format(io.Writer, interface{}) error
}

// FormatterFunc is a function usable as a Formatter
type FormatterFunc func(io.Writer, interface{}) error

// Format data
func (f FormatterFunc) Format(w io.Writer, data interface{}) error {
	return f(w, data)
}

var (
	jsonFormatter = FormatterFunc(func(w io.Writer, data interface{}) error {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	})

	yamlFormatter = FormatterFunc(func(w io.Writer, data interface{}) error {
		b, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	})

	faint   = color.New(color.FgHiBlack).SprintFunc()
	success = color.New(color.FgGreen).SprintFunc()
	failure = color.New(color.FgRed, color.Bold).SprintFunc()
)

// render data with the output format selected on the command line.
// The text formatter is used by default.
func render(w io.Writer, data interface{}, text Formatter) error {
	var f Formatter
	switch flisthubFlags.root.output {
	case outputJSON:
		f = jsonFormatter
	case outputYAML:
		f = yamlFormatter
	case outputText, "":
		f = text
	default:
		return fmt.Errorf("unsupported output format %q", flisthubFlags.root.output)
	}
	return f.Format(w, data)
}
