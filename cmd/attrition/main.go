// Command attrition runs the employee-attrition classification
// pipeline over one CSV file and prints the evaluation summary.
//
// Usage:
//
//	attrition [config.yaml]
//
// The optional argument is a YAML configuration path; without it the
// built-in defaults apply. There are no flags.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/peoplemetrics/attrition/pipeline"
	"github.com/peoplemetrics/attrition/pkg/log"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "attrition: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: attrition [config.yaml]")
	}
	configPath := ""
	if len(args) == 1 {
		configPath = args[0]
	}

	cfg, err := pipeline.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log.SetupLogger(cfg.LogLevel)
	log.InstallWarningSink(nil)

	report, err := pipeline.Run(cfg)
	if err != nil {
		return err
	}
	report.Render(os.Stdout)

	if cfg.OutputDir != "" {
		path := filepath.Join(cfg.OutputDir, "report.yaml")
		if err := report.WriteYAML(path); err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", path)
	}
	return nil
}
