package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/comp-lang/comp/internal/ast"
	"github.com/comp-lang/comp/internal/core"
	"github.com/comp-lang/comp/internal/errors"
	"github.com/comp-lang/comp/internal/eval"
	"github.com/comp-lang/comp/internal/module"
	"github.com/comp-lang/comp/internal/native"
	"github.com/comp-lang/comp/internal/output"
	"github.com/comp-lang/comp/internal/watcher"
)

// NewRunCmd creates the `comp run` command: load an AST document,
// call its entry function, render the result.
func NewRunCmd() *cobra.Command {
	var (
		callFlag   string
		watchFlag  bool
		formatFlag string
	)

	cmd := &cobra.Command{
		Use:   "run <document>",
		Short: "Evaluate a module document's entry function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			path := args[0]
			if root := Config().ModuleRoot; root != "" && !filepath.IsAbs(path) {
				path = filepath.Join(root, path)
			}
			format := formatFlag
			if format == "" {
				format = Config().Output
			}

			if !watchFlag {
				return runOnce(cmd.Context(), fs, path, callFlag, format)
			}

			w, err := watcher.New([]string{path})
			if err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			defer w.Stop()

			if err := runOnce(cmd.Context(), fs, path, callFlag, format); err != nil {
				output.Error("evaluation failed", "error", err)
			}
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case changed, ok := <-w.Changes():
					if !ok {
						return nil
					}
					output.Info("document changed, re-evaluating", "path", changed)
					if err := runOnce(cmd.Context(), fs, path, callFlag, format); err != nil {
						output.Error("evaluation failed", "error", err)
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&callFlag, "call", "main", "Function to invoke")
	cmd.Flags().BoolVar(&watchFlag, "watch", false, "Re-evaluate when the document changes")
	cmd.Flags().StringVarP(&formatFlag, "output", "o", "", "Output format: yaml or text")

	return cmd
}

// runOnce performs one load + call + render cycle.
func runOnce(ctx context.Context, fs afero.Fs, path, call, format string) error {
	var result core.Value
	action := func() error {
		decl, err := loadDocument(fs, path)
		if err != nil {
			return err
		}
		in, err := newInterp(fs)
		if err != nil {
			return err
		}
		if err := in.Registry().Register(decl); err != nil {
			return err
		}
		result, err = in.Call(ctx, decl.Path, call, core.Empty())
		return err
	}
	if err := output.RunWithSpinner(ctx, action, output.WithTitle("Evaluating "+path)); err != nil {
		return err
	}

	if core.IsFailure(result) {
		kind, _ := core.FailureKind(result)
		output.Error("pipeline failed", "kind", kind.PathString())
		rendered, err := renderValue(result, format)
		if err != nil {
			return err
		}
		output.Details(rendered)
		return errors.Wrap(errors.ErrValidation, "evaluation produced a failure")
	}

	rendered, err := renderValue(result, format)
	if err != nil {
		return err
	}
	output.Print(rendered)
	return nil
}

// loadDocument reads and decodes an AST document.
func loadDocument(fs afero.Fs, path string) (*ast.Module, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.NewNotFoundError(
			fmt.Sprintf("cannot read document: %v", err), path, "")
	}
	decl, err := ast.DecodeModule(data)
	if err != nil {
		return nil, errors.NewValidationError(err.Error(), path,
			"the document must be a serialized Comp AST")
	}
	return decl, nil
}

// newInterp wires a fresh registry, std module, and evaluator.
func newInterp(fs afero.Fs) (*eval.Interp, error) {
	reg := module.NewRegistry()
	in := eval.New(reg)
	if _, err := native.Install(reg, native.Options{Fs: fs, Invoker: in}); err != nil {
		return nil, err
	}
	return in, nil
}
