package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"cflow/internal/logging"
)

// Summary is the machine readable result of the run command.
type Summary struct {
	File        string            `json:"file"`
	Digest      string            `json:"digest"`
	Kind        string            `json:"kind"`
	Arch        string            `json:"arch"`
	Functions   []FunctionSummary `json:"functions"`
	Diagnostics []string          `json:"diagnostics"`
}

type FunctionSummary struct {
	Name   string `json:"name"`
	Entry  string `json:"entry"`
	Blocks int    `json:"blocks"`
	Edges  int    `json:"edges"`
	Calls  int    `json:"calls"`
}

func newRunCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "run [file]",
		Short: "Print a non-interactive summary of the recovered functions",
		Long: `Disassemble every entry point and print one line per function with
its block and edge counts, followed by the diagnostics.`,
		Example: `
# Summarize an ELF binary
cflow run ./a.out

# Summary as JSON for regression testing
cflow run -j firmware.bin --arch avr --entry 0
  `,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			in, err := loadInput(args[0], cfg)
			if err != nil {
				return err
			}
			a, err := architecture(in.arch, cfg.PCBits)
			if err != nil {
				return err
			}
			slog.Debug("Running analysis", "file", in.path, "arch", a.Name, "entries", len(in.entries))

			lg := logging.NewLogger()
			defer lg.Close()
			fns, diags := disassembleAll(a, in, lg)

			s := Summary{File: in.path, Digest: in.digest, Kind: in.kind, Arch: a.Name,
				Functions: []FunctionSummary{}, Diagnostics: []string{}}
			for _, fn := range fns {
				fs := FunctionSummary{Name: fn.Name, Blocks: len(fn.BasicBlocks()), Edges: fn.CFG.NumEdges(), Calls: len(fn.CollectCalls())}
				if bb, ok := fn.EntryPoint(); ok {
					fs.Entry = fmt.Sprintf("%#x", bb.Area.Start)
				}
				s.Functions = append(s.Functions, fs)
			}
			for _, d := range diags {
				s.Diagnostics = append(s.Diagnostics, d.String())
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			fmt.Fprintf(out, "%s (%s, %s)\nsha256 %s\n", s.File, s.Kind, s.Arch, s.Digest)
			for _, fs := range s.Functions {
				fmt.Fprintln(out, summaryLine(fs.Name, fs.Blocks, fs.Edges))
			}
			fmt.Fprintf(out, "%d diagnostics\n", len(s.Diagnostics))
			return nil
		},
	}
	c.Flags().StringP("arch", "a", "", "Architecture")
	c.Flags().StringSliceP("entry", "e", nil, "Entry address or symbol (repeatable)")
	c.Flags().Uint64("base", 0, "Load address of raw images")
	c.Flags().Bool("prg", false, "Input is a C64 PRG file")
	c.Flags().Int("pc-bits", 0, "Program counter width for AVR devices without a preset")
	c.Flags().BoolP("json", "j", false, "Output the summary as JSON")
	return c
}

func summaryLine(name string, blocks, edges int) string {
	return fmt.Sprintf("%-32s %6d blocks %6d edges", name, blocks, edges)
}
