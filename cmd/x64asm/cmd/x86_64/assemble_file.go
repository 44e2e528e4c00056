// Package x86_64 holds the x64asm CLI's x86-64 subcommands.
package x86_64

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	x86_64 "github.com/x64kit/x64asm/architecture/x86_64"
	"github.com/x64kit/x64asm/elf"
	"github.com/x64kit/x64asm/internal/debugcontext"
	"github.com/x64kit/x64asm/internal/lineMap"
	"github.com/x64kit/x64asm/parser"
	"github.com/x64kit/x64asm/preprocess"
)

var (
	targetFlag string
	outputFlag string
)

// AssembleCmd is the "x86_64 assemble" subcommand: it runs the full
// pre-process -> parse -> assemble -> (optionally) ELF-wrap pipeline over a
// single source file and writes the result to outputFlag.
var AssembleCmd = &cobra.Command{
	Use:   "assemble <assembly-file>",
	Short: "Assemble an x86-64 source file into a binary or ELF object.",
	Long:  `Assemble an x86-64 source file into a flat binary or an ELF32/ELF64 relocatable object.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runAssembleFile(cmd, args[0]); err != nil {
			cmd.PrintErrln("Error:", err)
			return err
		}
		return nil
	},
}

func init() {
	AssembleCmd.Flags().StringVar(&targetFlag, "target", "elf64", "output format: bin | elf32 | elf64")
	AssembleCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output file path (required)")
}

// runAssembleFile resolves path, runs the pre-processor, parses the result,
// assembles it, and writes the chosen output format to outputFlag.
func runAssembleFile(cmd *cobra.Command, path string) error {
	if outputFlag == "" {
		return fmt.Errorf("--output/-o is required")
	}

	fullPath, err := resolveFilePath(path)
	if err != nil {
		return err
	}

	sourceBytes, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("failed to read assembly file: %w", err)
	}

	debugCtx := debugcontext.NewDebugContext(fullPath)
	tracker, err := lineMap.Track(fullPath)
	if err != nil {
		return fmt.Errorf("failed to initialise line tracker: %w", err)
	}

	source, err := preprocess.Run(string(sourceBytes), fullPath, tracker, debugCtx)
	if err != nil {
		return fmt.Errorf("pre-processing failed: %w", err)
	}

	debugCtx.SetPhase("parse")
	program, parseErrs := parser.NewParser(parser.NewLexer(source).Tokenize()).
		WithDebugContext(debugCtx).
		ParseProgram()
	if len(parseErrs) > 0 {
		for _, e := range parseErrs {
			cmd.PrintErrln(fullPath + ":" + e.String())
		}
		return fmt.Errorf("%d parse error(s)", len(parseErrs))
	}

	assembler := x86_64.NewAssembler(program).WithDebugContext(debugCtx)
	result := assembler.Assemble()
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			cmd.PrintErrln(fullPath + ":" + e.String())
		}
		return fmt.Errorf("%d assembly error(s)", len(result.Errors))
	}

	out, err := renderOutput(result, targetFlag)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputFlag, out, 0o644); err != nil {
		return fmt.Errorf("failed to write output file %q: %w", outputFlag, err)
	}

	return nil
}

// renderOutput turns an AssembleResult into the bytes the requested target
// format expects: a flat binary is every touched section concatenated in
// canonical order, an ELF target wraps the same sections, symbols, and
// relocations in an ELF32/ELF64 object.
func renderOutput(result x86_64.AssembleResult, target string) ([]byte, error) {
	switch target {
	case "bin":
		var out []byte
		for _, name := range result.SectionOrder {
			out = append(out, result.Sections[name]...)
		}
		return out, nil
	case "elf32", "elf64":
		var buf byteSink
		opts := elf.Options{Is64Bit: target == "elf64"}
		if err := elf.Write(&buf, result, opts); err != nil {
			return nil, fmt.Errorf("failed to write ELF object: %w", err)
		}
		return buf.bytes, nil
	default:
		return nil, fmt.Errorf("unknown --target %q: must be bin, elf32, or elf64", target)
	}
}

// byteSink is a minimal io.Writer; elf.Write only ever calls Write, so this
// keeps the import surface of this file limited to what it actually needs.
type byteSink struct {
	bytes []byte
}

func (b *byteSink) Write(p []byte) (int, error) {
	b.bytes = append(b.bytes, p...)
	return len(p), nil
}

// resolveFilePath validates the CLI argument and returns the absolute path
// to the assembly file.
func resolveFilePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("assembly file path is empty")
	}

	fullPath := path
	if !filepath.IsAbs(fullPath) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("unable to get current working directory: %w", err)
		}
		fullPath = filepath.Join(cwd, path)
	}
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return "", fmt.Errorf("assembly file does not exist at path: %s", fullPath)
	}

	return fullPath, nil
}
