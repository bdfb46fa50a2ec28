package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/347255699/comfystyle/pkg/styles"
)

func Styles(e *env) *cobra.Command {
	stylesCmd := &cobra.Command{
		Use:   "styles",
		Short: "list the styles and substyles in the catalog",
	}
	stylesCmd.Flags().String("styles", "", "style catalog csv")

	stylesCmd.RunE = func(cmd *cobra.Command, args []string) error {
		catalog, err := styles.Load(e.cfg.Styles.Path)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, name := range catalog.Styles() {
			for _, sub := range catalog.Substyles(name) {
				sel := styles.Selection{Style: name, Substyle: sub.Name}
				fmt.Fprintf(tw, "%s\t%s\n", sel, sub.Positive)
			}
		}
		return tw.Flush()
	}

	return stylesCmd
}
