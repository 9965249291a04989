package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/query"
	"github.com/flowmaps/flowmaps-data/internal/usecase/mobility"
)

func (a *app) hourlyCommand() *cobra.Command {
	return group("hourly_mobility", "Raw hourly MITMA trip files",
		a.hourlyListCommand(),
		a.hourlyListDatesCommand(),
		a.hourlyDescribeCommand(),
	)
}

func (a *app) hourlyListCommand() *cobra.Command {
	var onlyURLs bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List downloaded hourly files",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := a.mobility.HourlyFiles(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range files {
				if onlyURLs {
					for _, u := range f.URLs {
						a.println(u)
					}
					continue
				}
				a.printf("%s\t%s\n", f.Date, strings.Join(f.URLs, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&onlyURLs, "only-urls", false, "print only the source file URLs")
	return cmd
}

func (a *app) hourlyListDatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-dates",
		Short: "List dates with hourly files",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dates, err := a.mobility.HourlyDates(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range dates {
				a.println(d)
			}
			return nil
		},
	}
}

func (a *app) hourlyDescribeCommand() *cobra.Command {
	var (
		date    string
		onlyURL bool
	)
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe the hourly file of one day",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, ok, err := a.mobility.DescribeHourly(cmd.Context(), date)
			if err != nil {
				return err
			}
			if !ok {
				a.notFound("No data for date=%s", date)
				return nil
			}
			if onlyURL {
				for _, u := range f.URLs {
					a.println(u)
				}
				return nil
			}
			a.printf("Describing hourly mobility for date=%s\n", date)
			a.printf("Description: %s\n", mobility.HourlyDescription)
			a.printf("Original data url: %s\n", strings.Join(f.URLs, ", "))
			a.printf("Downloaded at: %s\n", f.StoredAt)
			a.printf("Number of entries: %s\n", f.Entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day, YYYY-MM-DD (required)")
	cmd.Flags().BoolVar(&onlyURL, "only-url", false, "print only the source file URL")
	return cmd
}

func (a *app) dailyCommand() *cobra.Command {
	return group("daily_mobility", "Daily origin-destination matrix",
		a.dailyListCommand(),
		a.dailyListDatesCommand(),
		a.dailyDescribeCommand(),
		a.dailyDownloadCommand(),
	)
}

func (a *app) dailyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available source/target layer pairs",
		Args:  noArgs,
		RunE: func(*cobra.Command, []string) error {
			a.println("Listing available mobility layers:")
			for _, p := range a.mobility.Pairs() {
				pair := document.Of("source_layer", p.SourceLayer, "target_layer", p.TargetLayer)
				a.printf("%s\n", document.Marshal(document.Object(pair)))
			}
			return nil
		},
	}
}

func (a *app) dailyListDatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-dates",
		Short: "List dates with matrix cells",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dates, err := a.mobility.DailyDates(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range dates {
				a.println(d)
			}
			return nil
		},
	}
}

func (a *app) dailyDescribeCommand() *cobra.Command {
	var withProvenance bool
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe the daily mobility matrix",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.println("Describing daily mobility matrix")
			sum, ok, err := a.mobility.DescribeDaily(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				a.notFound("No data for daily mobility matrix")
				return nil
			}
			a.printSummary(sum, false, withProvenance)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withProvenance, "provenance", false, "print the full provenance records")
	return cmd
}

func (a *app) dailyDownloadCommand() *cobra.Command {
	var (
		p   query.MobilityParams
		out outputOptions
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download matrix cells for a layer pair",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := required("source-layer", p.SourceLayer); err != nil {
				return err
			}
			if err := required("target-layer", p.TargetLayer); err != nil {
				return err
			}
			format, err := out.resolve()
			if err != nil {
				return err
			}
			p.Dates = out.dates
			a.printf("Downloading daily mobility %s -> %s\n", p.SourceLayer, p.TargetLayer)
			rows, err := a.mobility.DownloadDaily(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.save(rows, out.file, format)
		},
	}
	cmd.Flags().StringVar(&p.SourceLayer, "source-layer", "", "origin layer (required)")
	cmd.Flags().StringVar(&p.TargetLayer, "target-layer", "", "destination layer (required)")
	cmd.Flags().StringVar(&p.Source, "source", "", "restrict to one origin polygon id")
	cmd.Flags().StringVar(&p.Target, "target", "", "restrict to one destination polygon id")
	out.bind(cmd, true)
	return cmd
}
