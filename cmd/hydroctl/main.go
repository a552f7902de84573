// hydroctl runs catalogue processes locally, without the HTTP service or its
// backing stores. Useful for model runs on a workstation and for smoke-testing
// process changes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"hydroproc/internal/processes"
)

func main() {
	root := &cobra.Command{
		Use:           "hydroctl",
		Short:         "Run hydrological geoprocesses from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(processesCmd(), describeCmd(), runCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func processesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "processes",
		Short: "List available processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range processes.All() {
				d := p.Descriptor()
				fmt.Fprintf(cmd.OutOrStdout(), "%-32s %s\n", d.ID, d.Title)
			}
			return nil
		},
	}
}

func describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <process-id>",
		Short: "Print a process descriptor as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := processes.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown process %q", args[0])
			}
			b, err := json.MarshalIndent(p.Descriptor(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var (
		inputs  []string
		files   []string
		outDir  string
		keepTmp bool
	)

	cmd := &cobra.Command{
		Use:   "run <process-id>",
		Short: "Execute a process and write its outputs to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := processes.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown process %q", args[0])
			}

			literals, err := parsePairs(inputs)
			if err != nil {
				return err
			}
			filePaths, err := parsePairs(files)
			if err != nil {
				return err
			}

			present := make(map[string]bool, len(filePaths))
			for name, path := range filePaths {
				if _, err := os.Stat(path); err != nil {
					return fmt.Errorf("file input %s: %w", name, err)
				}
				present[name] = true
			}

			resolved, err := p.Descriptor().Resolve(literals, present)
			if err != nil {
				return err
			}

			workdir, err := os.MkdirTemp("", "hydroctl-*")
			if err != nil {
				return err
			}
			if !keepTmp {
				defer os.RemoveAll(workdir)
			}

			run := &processes.Run{Workdir: workdir, Literals: resolved, Files: filePaths}
			if err := p.Execute(context.Background(), run); err != nil {
				return fmt.Errorf("process failed: %w", err)
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			for _, out := range run.Outputs() {
				dst := filepath.Join(outDir, filepath.Base(out.Path))
				if err := copyFile(out.Path, dst); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", out.Name, dst)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "literal input as name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "file input as name=path (repeatable)")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to copy outputs into")
	cmd.Flags().BoolVar(&keepTmp, "keep-workdir", false, "keep the scratch directory after the run")

	return cmd
}

func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", p)
		}
		out[name] = value
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
