/*
Copyright 2025 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package main implements the CPU scheduler trace simulator.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	cobra "github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/policy"
	"github.com/sergelogvinov/cpu-scheduler/pkg/simulator"

	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/yaml"
)

var (
	command = "schedsim"
	version = "v0.0.0"
	commit  = "none"
)

func main() {
	if exitCode := run(); exitCode != 0 {
		os.Exit(exitCode)
	}
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := cobra.Command{
		Use:           command,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		Short:         "A command-line utility to replay scheduling traces against the CPU scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().IntP("verbosity", "v", 0, "Verbosity level (0=info, 1=debug, 2=trace, -1=errors only)")

	cmd.AddCommand(buildRunCmd(), buildPoliciesCmd())

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		errorString := err.Error()
		if strings.Contains(errorString, "arg(s)") || strings.Contains(errorString, "flag") || strings.Contains(errorString, "command") {
			fmt.Fprintf(os.Stderr, "Error: %s\n\n", errorString)
			fmt.Fprintln(os.Stderr, cmd.UsageString())
		} else {
			fmt.Fprintln(os.Stderr, "Execute error:", err)
		}

		return 1
	}

	return 0
}

func setupLogger(verbosity int) logr.Logger {
	opt := &zap.Options{
		Development:     true,
		Level:           zapcore.Level(-verbosity),
		StacktraceLevel: zapcore.PanicLevel,
		DestWriter:      os.Stderr,
		EncoderConfigOptions: []zap.EncoderConfigOption{
			func(ec *zapcore.EncoderConfig) {
				ec.TimeKey = ""
			},
		},
	}

	return zap.New(zap.UseFlagOptions(opt))
}

type runCmd struct {
	trace   string
	policy  policy.Name
	output  string
	options simulator.Options
}

func buildRunCmd() *cobra.Command {
	c := &runCmd{}

	cmd := cobra.Command{
		Use:           "run [trace]",
		Aliases:       []string{"r"},
		Short:         "Replay a trace file and print the decisions",
		Args:          cobra.MaximumNArgs(1),
		PreRunE:       c.parseArgs,
		RunE:          c.runTrace,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.Flags()
	flags.StringP("trace", "t", "", "path to the trace file")
	flags.StringP("policy", "p", "", "scheduling policy, overrides the trace")
	flags.BoolP("strict", "s", false, "fail when any step is rejected")
	flags.StringP("output", "o", "json", "output format, json or yaml")

	return &cmd
}

func (c *runCmd) parseArgs(cmd *cobra.Command, args []string) (err error) {
	flags := cmd.Flags()

	if c.trace, err = flags.GetString("trace"); err != nil {
		return err
	}

	if len(args) == 1 {
		c.trace = args[0]
	}

	if c.trace == "" {
		return fmt.Errorf("trace file is required, pass it as an arg(s) or with --trace")
	}

	name, err := flags.GetString("policy")
	if err != nil {
		return err
	}

	c.policy = policy.Name(name)
	if c.policy != policy.PolicyUnset && !c.policy.IsValid() {
		return fmt.Errorf("unknown policy %q, supported: %v", name, policy.Names())
	}

	if c.options.Strict, err = flags.GetBool("strict"); err != nil {
		return err
	}

	if c.output, err = flags.GetString("output"); err != nil {
		return err
	}

	if c.output != "json" && c.output != "yaml" {
		return fmt.Errorf("unknown output format %q", c.output)
	}

	return nil
}

func (c *runCmd) runTrace(cmd *cobra.Command, _ []string) error {
	verbosity, err := cmd.Flags().GetInt("verbosity")
	if err != nil {
		return err
	}

	logger := setupLogger(verbosity)

	trace, err := simulator.LoadTrace(c.trace)
	if err != nil {
		return err
	}

	if c.policy != policy.PolicyUnset {
		trace.Policy = c.policy
	}

	res, runErr := simulator.Run(cmd.Context(), logger, trace, c.options)
	if res == nil {
		return runErr
	}

	if err := printResult(res, c.output); err != nil {
		return err
	}

	return runErr
}

func printResult(res *simulator.Result, output string) error {
	var (
		data []byte
		err  error
	)

	if output == "yaml" {
		data, err = yaml.Marshal(res)
	} else {
		data, err = json.MarshalIndent(res, "", "  ")
	}

	if err != nil {
		return err
	}

	fmt.Println(string(data))

	return nil
}

func buildPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List the supported scheduling policies",
		Args:  cobra.ExactArgs(0),
		Run: func(_ *cobra.Command, _ []string) {
			for _, name := range policy.Names() {
				fmt.Println(name)
			}
		},
	}
}
