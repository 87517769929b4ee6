package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/comp-lang/comp/internal/ast"
	"github.com/comp-lang/comp/internal/errors"
	"github.com/comp-lang/comp/internal/output"
)

// NewEvalCmd creates the `comp eval` command: evaluate a single
// serialized expression against a scratch module importing std.
func NewEvalCmd() *cobra.Command {
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "eval <expression-document>",
		Short: "Evaluate one serialized expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			path := args[0]
			if root := Config().ModuleRoot; root != "" && !filepath.IsAbs(path) {
				path = filepath.Join(root, path)
			}

			data, err := afero.ReadFile(fs, path)
			if err != nil {
				return errors.NewNotFoundError(
					fmt.Sprintf("cannot read document: %v", err), path, "")
			}
			expr, err := ast.DecodeExpr(data)
			if err != nil {
				return errors.NewValidationError(err.Error(), path, "")
			}

			in, err := newInterp(fs)
			if err != nil {
				return err
			}
			scratch := &ast.Module{
				Path:    "scratch",
				Imports: []ast.Import{{Alias: "std", Path: "std"}},
			}
			if err := in.Registry().Register(scratch); err != nil {
				return err
			}

			result, err := in.Eval(cmd.Context(), scratch.Path, expr)
			if err != nil {
				return err
			}

			format := formatFlag
			if format == "" {
				format = Config().Output
			}
			rendered, err := renderValue(result, format)
			if err != nil {
				return err
			}
			output.Print(rendered)
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatFlag, "output", "o", "", "Output format: yaml or text")

	return cmd
}

// NewVersionCmd creates the `comp version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo()
			output.Println(info)
			return nil
		},
	}
}
