package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/freeeve/terrainkit/internal/config"
	"github.com/freeeve/terrainkit/pkg/choke"
	"github.com/freeeve/terrainkit/pkg/region"
	"github.com/freeeve/terrainkit/pkg/terrain"
)

func analyzeCmd() *cobra.Command {
	var tuningFile, outFile, linesFile string

	cmd := &cobra.Command{
		Use:   "analyze [map-file]",
		Short: "Decompose a map into regions, chokepoints and expansions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mf, a, err := analyzeFile(cmd.Context(), args[0], tuningFile, linesFile)
			if err != nil {
				return err
			}
			if outFile != "" {
				data, err := json.MarshalIndent(a.Snapshot(), "", "  ")
				if err != nil {
					return fmt.Errorf("encode analysis: %w", err)
				}
				if err := os.WriteFile(outFile, data, 0o644); err != nil {
					return fmt.Errorf("write analysis: %w", err)
				}
			}
			return printSummary(cmd.OutOrStdout(), mf, a)
		},
	}

	cmd.Flags().StringVarP(&tuningFile, "tuning", "t", "", "YAML tuning file")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the analysis snapshot as JSON")
	cmd.Flags().StringVar(&linesFile, "lines", "", "vision line cache; read when present, written otherwise")
	return cmd
}

// analyzeFile loads a map file and runs the full analysis over it.
func analyzeFile(ctx context.Context, path, tuningFile, linesFile string) (*terrain.MapFile, *region.Analysis, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts, err := config.LoadTuning(tuningFile)
	if err != nil {
		return nil, nil, err
	}
	mf, err := terrain.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	grid, err := mf.Grid()
	if err != nil {
		return nil, nil, err
	}

	var lines []choke.VisionLine
	if linesFile != "" {
		lines = readLinesCache(linesFile, mf.Identity())
	}

	a, used, err := region.NewBuilder(opts, log.Logger).Build(ctx, region.Input{
		Model:      grid,
		Units:      mf.Units,
		SelfStart:  mf.Starts.Self,
		EnemyStart: mf.Starts.Enemy,
		Lines:      lines,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("analyze %s: %w", mf.Name, err)
	}
	if linesFile != "" && lines == nil {
		if err := writeLinesCache(linesFile, mf.Identity(), used); err != nil {
			return nil, nil, err
		}
	}
	return mf, a, nil
}

// linesCache is the on-disk vision line cache, tagged with the identity of
// the map the lines were cast on.
type linesCache struct {
	Map   string          `json:"map"`
	Lines json.RawMessage `json:"lines"`
}

// readLinesCache returns the cached lines of mapID, or nil when the file is
// missing, unreadable or cast on another map.
func readLinesCache(path, mapID string) []choke.VisionLine {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var c linesCache
	if err := json.Unmarshal(data, &c); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Ignoring unreadable vision line cache")
		return nil
	}
	if c.Map != mapID {
		log.Warn().Str("file", path).Str("cached", c.Map).Str("map", mapID).Msg("Vision line cache belongs to another map, recasting")
		return nil
	}
	lines, err := choke.DecodeLines(c.Lines)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Ignoring unreadable vision line cache")
		return nil
	}
	return lines
}

func writeLinesCache(path, mapID string, lines []choke.VisionLine) error {
	encoded, err := choke.EncodeLines(lines)
	if err != nil {
		return fmt.Errorf("encode vision lines: %w", err)
	}
	data, err := json.Marshal(linesCache{Map: mapID, Lines: encoded})
	if err != nil {
		return fmt.Errorf("encode vision line cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write vision lines: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, mf *terrain.MapFile, a *region.Analysis) error {
	fmt.Fprintf(w, "map %s (%s)  run %s\n", mf.Name, mf.Identity(), a.RunID)
	fmt.Fprintf(w, "%d regions, %d ramps, %d expansions, %d chokepoints\n\n",
		len(a.Regions), len(a.Ramps), len(a.Expands), len(a.Chokepoints))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tCELLS\tNEIGHBORS\tOBSTRUCTED")
	for _, r := range a.Regions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%v\t%t\n", r.ID, r.Name, r.Type, len(r.Cells), r.Neighbors, r.Obstructed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(a.Expands) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "EXPAND\tTYPE\tPOSITION\tRESOURCES\tBLOCKERS\tSELF\tENEMY")
		for i, e := range a.Expands {
			fmt.Fprintf(tw, "%d\t%s\t%v\t%d\t%d\t%.1f\t%.1f\n",
				i, e.Type, e.Position, len(e.Resources), len(e.Blockers), e.SelfDistance, e.EnemyDistance)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
