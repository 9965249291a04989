package cli

import (
	"github.com/spf13/cobra"

	"github.com/flowmaps/flowmaps-data/internal/usecase/risk"
)

func (a *app) zoneCommand() *cobra.Command {
	return group("zone_movements", "Per-zone trip-count distributions",
		a.zoneListCommand(),
		a.zoneDescribeCommand(),
		a.zoneDownloadCommand(),
	)
}

func (a *app) zoneListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List layers with zone movements",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			layers, err := a.zones.Layers(cmd.Context())
			if err != nil {
				return err
			}
			a.println("Listing available zone_movements layers:")
			for _, l := range layers {
				a.println(l)
			}
			return nil
		},
	}
}

func (a *app) zoneDescribeCommand() *cobra.Command {
	var withProvenance bool
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe zone movements",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.println("Describing zone_movements")
			sum, ok, err := a.zones.Describe(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				a.notFound("No data for zone_movements")
				return nil
			}
			a.printSummary(sum, false, withProvenance)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withProvenance, "provenance", false, "print the full provenance records")
	return cmd
}

func (a *app) zoneDownloadCommand() *cobra.Command {
	var (
		layer string
		out   outputOptions
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download zone movements for a layer",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := required("layer", layer); err != nil {
				return err
			}
			format, err := out.resolve()
			if err != nil {
				return err
			}
			a.printf("Downloading zone_movements for layer=%s\n", layer)
			rows, err := a.zones.Download(cmd.Context(), layer, out.dates)
			if err != nil {
				return err
			}
			return a.save(rows, out.file, format)
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "layer name (required)")
	out.bind(cmd, true)
	return cmd
}

func (a *app) populationCommand() *cobra.Command {
	return group("population", "Population estimates from mobile phone records",
		a.populationListCommand(),
		a.populationDescribeCommand(),
		a.populationDownloadCommand(),
	)
}

func (a *app) populationListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List layers with population",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			layers, err := a.population.Layers(cmd.Context())
			if err != nil {
				return err
			}
			a.println("Listing available population layers:")
			for _, l := range layers {
				a.println(l)
			}
			return nil
		},
	}
}

func (a *app) populationDescribeCommand() *cobra.Command {
	var (
		layer          string
		withProvenance bool
	)
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe population for one layer",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := required("layer", layer); err != nil {
				return err
			}
			a.printf("Describing population for layer=%s\n", layer)
			sum, ok, err := a.population.Describe(cmd.Context(), layer)
			if err != nil {
				return err
			}
			if !ok {
				a.notFound("No data for layer=%s", layer)
				return nil
			}
			a.printSummary(sum, false, withProvenance)
			return nil
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "layer name (required)")
	cmd.Flags().BoolVar(&withProvenance, "provenance", false, "print the full provenance records")
	return cmd
}

func (a *app) populationDownloadCommand() *cobra.Command {
	var (
		layer string
		out   outputOptions
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download population counts for a layer",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := required("layer", layer); err != nil {
				return err
			}
			format, err := out.resolve()
			if err != nil {
				return err
			}
			a.printf("Downloading population for layer=%s\n", layer)
			rows, err := a.population.Download(cmd.Context(), layer, out.dates)
			if err != nil {
				return err
			}
			return a.save(rows, out.file, format)
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "layer name (required)")
	out.bind(cmd, true)
	return cmd
}

func (a *app) riskCommand() *cobra.Command {
	return group("risk", "Mobility-associated COVID-19 risk",
		a.riskListCommand(),
		a.riskListDatesCommand(),
		a.riskDownloadCommand(),
	)
}

func (a *app) riskListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List case series risk can be computed for",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			series, err := a.risk.List(cmd.Context())
			if err != nil {
				return err
			}
			a.println("Listing available risk series:")
			for _, s := range series {
				a.printf("%s\tlayer: %s\n", s.EV, s.Layer)
			}
			return nil
		},
	}
}

func (a *app) riskListDatesCommand() *cobra.Command {
	var ev string
	cmd := &cobra.Command{
		Use:   "list-dates",
		Short: "List days with both case counts and mobility",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dates, err := a.risk.Dates(cmd.Context(), ev)
			if err != nil {
				return err
			}
			for _, d := range dates {
				a.println(d)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ev, "ev", "", "event series id (required)")
	return cmd
}

func (a *app) riskDownloadCommand() *cobra.Command {
	var (
		p   risk.Params
		out outputOptions
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Compute risk for one day and write it to a file",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, f := range []struct{ name, value string }{
				{"source-layer", p.SourceLayer},
				{"target-layer", p.TargetLayer},
				{"ev", p.EV},
				{"date", p.Date},
			} {
				if err := required(f.name, f.value); err != nil {
					return err
				}
			}
			format, err := out.resolve()
			if err != nil {
				return err
			}
			a.printf("Computing risk for ev=%s on %s, %s -> %s\n", p.EV, p.Date, p.SourceLayer, p.TargetLayer)
			rows, err := a.risk.Compute(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.save(rows, out.file, format)
		},
	}
	cmd.Flags().StringVar(&p.SourceLayer, "source-layer", "", "origin layer (required)")
	cmd.Flags().StringVar(&p.TargetLayer, "target-layer", "", "destination layer (required)")
	cmd.Flags().StringVar(&p.EV, "ev", "", "case series id (required)")
	cmd.Flags().StringVar(&p.Date, "date", "", "day, YYYY-MM-DD (required)")
	out.bind(cmd, false)
	return cmd
}
