package cmd

import (
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"cflow/internal/arch"
	"cflow/internal/logging"
	"cflow/internal/report"
	"cflow/internal/ui/colorize"
)

func newDisasmCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "disasm [file]",
		Short: "Recover the control flow graph of functions in a binary",
		Long: `Disassemble every entry point of a binary and print the recovered
functions. ELF files are detected automatically; other inputs are raw
images mapped at --base, or C64 programs with --prg.`,
		Example: `
# List the function at the ELF entry point
cflow disasm ./a.out

# Two AVR functions from a raw flash dump, as Graphviz
cflow disasm firmware.bin --arch atmega8 --entry 0 --entry 0x1548 --format dot

# A C64 program
cflow disasm game.prg --prg --format tree
  `,
		Args: cobra.ExactArgs(1),
		RunE: runDisasm,
	}
	c.Flags().StringP("arch", "a", "", "Architecture: "+strings.Join(arch.Names(), ", "))
	c.Flags().StringSliceP("entry", "e", nil, "Entry address or symbol (repeatable)")
	c.Flags().StringP("format", "f", "listing", "Output format: "+strings.Join(report.Formats(), ", "))
	c.Flags().Uint64("base", 0, "Load address of raw images")
	c.Flags().Bool("prg", false, "Input is a C64 PRG file")
	c.Flags().Int("pc-bits", 0, "Program counter width for AVR devices without a preset")
	c.Flags().String("color", "auto", "Color output: auto, always, never")
	return c
}

func runDisasm(cmd *cobra.Command, args []string) error {
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

	lg := logging.NewLogger()
	defer lg.Close()
	fns, diags := disassembleAll(a, in, lg)

	res := report.Result{Arch: a.Name, Source: in.path, Functions: fns, Diagnostics: diags}
	return report.Render(cmd.OutOrStdout(), cfg.Format, res, outputOptions(cfg))
}

// outputOptions enables colors only for terminals, unless forced.
func outputOptions(cfg CflowConfig) report.Options {
	o := report.Options{Width: 100}
	tty := term.IsTerminal(os.Stdout.Fd())
	if tty {
		if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
			o.Width = w
		}
	}
	switch cfg.Color {
	case "always":
		o.Color = true
	case "never":
	default:
		o.Color = tty && colorize.Enabled()
	}
	return o
}
