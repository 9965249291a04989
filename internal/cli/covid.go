package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) covidCommand() *cobra.Command {
	return group("covid19", "Consolidated COVID-19 case counts",
		a.covidListCommand(),
		a.covidDescribeCommand(),
		a.covidDownloadCommand(),
	)
}

func (a *app) covidListCommand() *cobra.Command {
	var onlyIDs bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List consolidated case series",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			series, err := a.covid.List(cmd.Context())
			if err != nil {
				return err
			}
			if onlyIDs {
				for _, s := range series {
					a.println(s.EV)
				}
				return nil
			}
			a.println("Listing consolidated ev:")
			for _, s := range series {
				a.printf("%s\n\tDescription: %s\n\tNumber of entries: %s\n\tlayer: %s\n\n",
					s.EV, s.Description, s.Entries, s.Layer)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&onlyIDs, "only-ids", false, "print only the ev identifiers")
	return cmd
}

func (a *app) covidDescribeCommand() *cobra.Command {
	var (
		ev             string
		withProvenance bool
	)
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe one consolidated case series",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := required("ev", ev); err != nil {
				return err
			}
			a.printf("Describing consolidated ev=%s\n", ev)
			sum, ok, err := a.covid.Describe(cmd.Context(), ev)
			if err != nil {
				return err
			}
			if !ok {
				a.notFound("No data for ev=%s", ev)
				return nil
			}
			a.printSummary(sum, true, withProvenance)
			return nil
		},
	}
	cmd.Flags().StringVar(&ev, "ev", "", "event series id, e.g. ES.covid_cpro (required)")
	cmd.Flags().BoolVar(&withProvenance, "provenance", false, "print the full provenance records")
	return cmd
}

func (a *app) covidDownloadCommand() *cobra.Command {
	var (
		ev  string
		out outputOptions
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download case counts with population and per-100k derivations",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := required("ev", ev); err != nil {
				return err
			}
			format, err := out.resolve()
			if err != nil {
				return err
			}
			a.printf("Downloading consolidated health data for ev=%s\n", ev)
			rows, err := a.covid.Download(cmd.Context(), ev, out.dates)
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
