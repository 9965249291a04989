package cli

import (
	"github.com/spf13/cobra"

	"github.com/flowmaps/flowmaps-data/internal/export"
)

func (a *app) layersCommand() *cobra.Command {
	return group("layers", "Geographic layers (polygons)",
		a.layersListCommand(),
		a.layersDescribeCommand(),
		a.layersDownloadCommand(),
	)
}

func (a *app) layersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available layers",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := a.layers.List(cmd.Context())
			if err != nil {
				return err
			}
			a.println("Listing layers:")
			for _, l := range infos {
				a.printf("%s:  \t%s, %s polygons\n", l.Layer, l.Description, l.Polygons)
			}
			return nil
		},
	}
}

func (a *app) layersDescribeCommand() *cobra.Command {
	var (
		name           string
		withProvenance bool
	)
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe one layer",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := required("layer", name); err != nil {
				return err
			}
			a.printf("Describing layer=%s\n", name)
			info, ok, err := a.layers.Describe(cmd.Context(), name)
			if err != nil {
				return err
			}
			if !ok {
				a.notFound("No data for layer=%s", name)
				return nil
			}
			a.printf("Description: %s\n", info.Description)
			a.println("Layer in geojson format (https://en.wikipedia.org/wiki/GeoJSON)")
			a.printf("Number of polygons: %s\n", info.Polygons)
			if withProvenance {
				a.printProvenance(info.Provenance)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "layer", "", "layer name (required)")
	cmd.Flags().BoolVar(&withProvenance, "provenance", false, "print the full provenance record")
	return cmd
}

func (a *app) layersDownloadCommand() *cobra.Command {
	var (
		name   string
		file   string
		noSave bool
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a layer as a GeoJSON FeatureCollection",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := required("layer", name); err != nil {
				return err
			}
			if file == "" {
				file = name + ".geojson"
			}
			a.printf("Downloading layer %s\n", name)
			fc, n, err := a.layers.FeatureCollection(cmd.Context(), name)
			if err != nil {
				return err
			}
			if n == 0 {
				a.notFound("No data for layer=%s", name)
				return nil
			}
			if noSave {
				a.printf("%d polygons downloaded, not saved\n", n)
				return nil
			}
			a.printf("Saving layer to file: %s\n", file)
			if err := export.WriteJSONFile(file, fc); err != nil {
				return err
			}
			a.printf("%d polygons written to file: %s\n", n, file)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "layer", "", "layer name (required)")
	cmd.Flags().StringVarP(&file, "output-file", "o", "", "GeoJSON file to write (default <layer>.geojson)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "download without writing a file")
	return cmd
}
