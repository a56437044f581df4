package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/freeeve/terrainkit/pkg/geo"
	"github.com/freeeve/terrainkit/pkg/pathfind"
	"github.com/freeeve/terrainkit/pkg/region"
)

func pathCmd() *cobra.Command {
	var from, to, tuningFile string
	var regions bool

	cmd := &cobra.Command{
		Use:   "path [map-file]",
		Short: "Find a ground path between two positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := parsePoint(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			dst, err := parsePoint(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			_, a, err := analyzeFile(cmd.Context(), args[0], tuningFile, "")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if regions {
				rp := region.NewPathfinder(a, pathfind.DefaultOptions(), log.Logger)
				rs, ok := rp.FindRegions(src, dst)
				if !ok {
					fmt.Fprintln(out, "no path")
					return nil
				}
				names := make([]string, len(rs))
				for i, r := range rs {
					names[i] = r.Name
				}
				fmt.Fprintln(out, strings.Join(names, " -> "))
				return nil
			}

			cp := pathfind.NewCellPathfinder(a.Model(), pathfind.DefaultOptions(), log.Logger)
			points, ok := cp.FindPointPath(src, dst)
			if !ok {
				fmt.Fprintln(out, "no path")
				return nil
			}
			fmt.Fprintf(out, "%d steps, length %.2f\n", len(points)-1, pathfind.PathLength(points, geo.Point.Dist))
			for _, p := range points {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "start position x,y")
	cmd.Flags().StringVar(&to, "to", "", "end position x,y")
	cmd.Flags().BoolVar(&regions, "regions", false, "print the region path instead of cells")
	cmd.Flags().StringVarP(&tuningFile, "tuning", "t", "", "YAML tuning file")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func parsePoint(s string) (geo.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("expected x,y, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return geo.Point{}, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return geo.Point{}, err
	}
	return geo.Pt(x, y), nil
}
