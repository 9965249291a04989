package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) datasetsCommand() *cobra.Command {
	return group("datasets", "Raw per-layer datasets",
		a.datasetsListCommand(),
		a.datasetsDescribeCommand(),
		a.datasetsDownloadCommand(),
	)
}

func (a *app) datasetsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List raw dataset series",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			series, err := a.datasets.List(cmd.Context())
			if err != nil {
				return err
			}
			a.println("Listing ev:")
			for _, s := range series {
				a.printf("%s\n\tDescription: %s\n\tlayer: %s\n\n", s.EV, s.Description, s.Layer)
			}
			return nil
		},
	}
}

func (a *app) datasetsDescribeCommand() *cobra.Command {
	var (
		ev             string
		withProvenance bool
	)
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe one raw dataset series",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := required("ev", ev); err != nil {
				return err
			}
			a.printf("Describing ev=%s\n", ev)
			sum, ok, err := a.datasets.Describe(cmd.Context(), ev)
			if err != nil {
				return err
			}
			if !ok {
				a.notFound("No data for ev=%s", ev)
				return nil
			}
			a.printf("Description: %s\n", sum.Description)
			a.printf("Original data url: %s\n", strings.Join(sum.SourceURLs, ", "))
			a.printf("Last downloaded at: %s\n", sum.DownloadedAt)
			a.printf("Number of entries: %s\n", sum.NumEntries)
			a.printf("Data associated to layer: %s\n", sum.Layer)
			a.printDates(sum.Dates)
			a.printExample(sum.Example)
			if withProvenance {
				a.printProvenance(sum.Provenance...)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ev, "ev", "", "event series id (required)")
	cmd.Flags().BoolVar(&withProvenance, "provenance", false, "print the full provenance record")
	return cmd
}

func (a *app) datasetsDownloadCommand() *cobra.Command {
	var (
		ev  string
		out outputOptions
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download raw documents of one series",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := required("ev", ev); err != nil {
				return err
			}
			format, err := out.resolve()
			if err != nil {
				return err
			}
			a.printf("Downloading data for ev=%s\n", ev)
			rows, err := a.datasets.Download(cmd.Context(), ev, out.dates)
			if err != nil {
				return err
			}
			return a.save(rows, out.file, format)
		},
	}
	cmd.Flags().StringVar(&ev, "ev", "", "event series id (required)")
	out.bind(cmd, true)
	return cmd
}
