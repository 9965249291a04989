package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/domain/provenance"
	"github.com/flowmaps/flowmaps-data/internal/export"
	"github.com/flowmaps/flowmaps-data/internal/query"
)

const jsonIndent = "    "

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}

func (a *app) println(args ...any) {
	fmt.Fprintln(a.stdout, args...)
}

// notFound prints a soft miss; the command still exits 0.
func (a *app) notFound(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(a.stdout, format+"\n", args...)
}

func (a *app) printJSON(label string, v document.Value) {
	a.printf("%s:\n%s\n", label, document.MarshalIndent(v, jsonIndent))
}

func (a *app) printDates(s provenance.Span) {
	if s.IsZero() {
		a.println("Available dates: none")
		return
	}
	a.printf("Available dates: min=%s, max=%s\n", s.Min, s.Max)
}

func (a *app) printExample(d *document.Document) {
	if d == nil {
		a.println("Example document: none")
		return
	}
	a.printJSON("Example document", document.Object(d))
}

func (a *app) printProvenance(records ...provenance.Record) {
	a.printJSON("Full provenance", provenance.Value(records...))
}

// printSummary renders the common describe block.
func (a *app) printSummary(s provenance.Summary, withEntries, withProvenance bool) {
	a.printf("Description: %s\n", s.Description)
	a.printf("Original data url: %s\n", strings.Join(s.SourceURLs, ", "))
	a.printf("Original data downloaded at: %s\n", s.DownloadedAt)
	a.printf("Processed at: %s\n", s.ProcessedAt)
	if withEntries {
		a.printf("Number of entries: %s\n", s.NumEntries)
	}
	a.printDates(s.Dates)
	a.printExample(s.Example)
	if withProvenance {
		a.printProvenance(s.Provenance...)
	}
}

// outputOptions are the file flags shared by download commands.
type outputOptions struct {
	file   string
	format string
	dates  query.DateRange
}

func (o *outputOptions) bind(cmd *cobra.Command, withDates bool) {
	cmd.Flags().StringVarP(&o.file, "output-file", "o", "", "file to write (required)")
	cmd.Flags().StringVar(&o.format, "output-format", string(export.FormatCSV), "output format: csv, json, parquet")
	if withDates {
		cmd.Flags().StringVar(&o.dates.Start, "start-date", "", "first date, YYYY-MM-DD (inclusive)")
		cmd.Flags().StringVar(&o.dates.End, "end-date", "", "last date, YYYY-MM-DD (inclusive)")
	}
}

// resolve validates the output flags before anything is fetched.
func (o *outputOptions) resolve() (export.Format, error) {
	f, err := export.ParseFormat(o.format)
	if err != nil {
		return "", err
	}
	if o.file == "" {
		return "", domain.InvalidArgument("output-file", "is required")
	}
	if err := o.dates.Validate(); err != nil {
		return "", err
	}
	return f, nil
}

// save writes rows to the output file. An empty result writes nothing.
func (a *app) save(rows []*document.Document, path string, f export.Format) error {
	if len(rows) == 0 {
		a.notFound("No rows matched, nothing written to %s", path)
		return nil
	}
	if err := export.WriteFile(path, export.NewTable(rows), f); err != nil {
		return err
	}
	a.printf("%d rows written to file: %s\n", len(rows), path)
	return nil
}

// required fails with a usage error when a string flag was left empty.
func required(name, value string) error {
	if value == "" {
		return domain.InvalidArgument(name, "is required")
	}
	return nil
}

// noArgs rejects positional arguments with usage status.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &usageError{err: fmt.Errorf("unknown argument %q for %q", args[0], cmd.CommandPath())}
	}
	return nil
}

// group builds a parent command that only holds subcommands.
func group(use, short string, children ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(children...)
	return cmd
}
