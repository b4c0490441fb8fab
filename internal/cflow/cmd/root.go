// Package cmd is the cflow command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"cflow/internal/cflow/log"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var stopProfiling func()
	root := &cobra.Command{
		Use:   "cflow",
		Short: "Multi-architecture disassembler and control flow recovery",
		Long: `cflow decodes machine code for amd64, arm64, AVR and 6502 targets and
recovers the control flow graph of each function it is pointed at.`,
		Example: `
# Recover the function at the ELF entry point
cflow disasm ./a.out

# Summarize with debug logging
cflow -d run ./a.out
  `,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ResolveCwd(cmd); err != nil {
				return err
			}
			debug, _ := cmd.Flags().GetBool("debug")
			log.Setup(debug)
			stop, err := startProfiling(cmd)
			if err != nil {
				return err
			}
			stopProfiling = stop
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if stopProfiling != nil {
				stopProfiling()
			}
		},
	}
	root.PersistentFlags().StringP("cwd", "c", "", "Current working directory")
	root.PersistentFlags().String("config", "", "Configuration file (YAML)")
	root.PersistentFlags().BoolP("debug", "d", false, "Debug")
	root.PersistentFlags().String("cpuprofile", "", "Write CPU profile to file")
	root.PersistentFlags().String("memprofile", "", "Write memory profile to file")

	root.AddCommand(newDisasmCmd(), newRunCmd(), newSchemaCmd())
	return root
}

// startProfiling starts the profiles requested on the command line and
// returns the function finishing them.
func startProfiling(cmd *cobra.Command) (func(), error) {
	var stops []func()
	if cpuprofile, _ := cmd.Flags().GetString("cpuprofile"); cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			return nil, fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("could not start CPU profile: %w", err)
		}
		stops = append(stops, func() {
			pprof.StopCPUProfile()
			f.Close()
		})
	}
	if memprofile, _ := cmd.Flags().GetString("memprofile"); memprofile != "" {
		stops = append(stops, func() {
			f, err := os.Create(memprofile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not create memory profile: %v\n", err)
				return
			}
			defer f.Close()
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Fprintf(os.Stderr, "could not write memory profile: %v\n", err)
			}
		})
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}, nil
}

// Execute runs the command line. Output that is piped bypasses fang so
// listings stay free of styling.
func Execute() {
	root := NewRootCmd()
	if !term.IsTerminal(os.Stdout.Fd()) {
		os.Setenv("CFLOW_NO_COLOR", "1")
		if err := root.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

func ResolveCwd(cmd *cobra.Command) (string, error) {
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd != "" {
		if err := os.Chdir(cwd); err != nil {
			return "", fmt.Errorf("failed to change directory: %w", err)
		}
		return cwd, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return cwd, nil
}
