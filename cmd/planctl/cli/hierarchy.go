package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mediaplan/mediaplan/internal/hierarchy"
)

func newHierarchyCommand(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hierarchy",
		Short: "Hierarchy helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <level> [level...]",
		Short: "Check a hierarchy order such as: subdivision moment funnel_stage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !hierarchy.ValidateOrderTags(args) {
				_, _ = fmt.Fprintf(opts.Stderr, "invalid order: %s\n", strings.Join(args, " > "))
				return exitError{code: 2}
			}
			order, _ := hierarchy.ParseOrder(args)
			names := make([]string, len(order))
			for i, level := range order {
				names[i] = level.String()
			}
			_, _ = fmt.Fprintf(opts.Stdout, "valid order: %s (depth %d)\n", strings.Join(names, " > "), len(order))
			return nil
		},
	})
	return cmd
}
