package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/worksession/internal/domain"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the work session stages in order",
	Args:  cobra.NoArgs,
	RunE:  runStages,
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}

func runStages(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tTITLE\tMINUTES")
	for _, info := range domain.Stages() {
		fmt.Fprintf(w, "%s\t%s\t%d-%d\n",
			info.Stage, info.Title, int(info.MinDuration.Minutes()), int(info.MaxDuration.Minutes()))
	}
	return w.Flush()
}
