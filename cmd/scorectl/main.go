package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/skillmeter-io/skillmeter/internal/config"
	"github.com/skillmeter-io/skillmeter/internal/reference"
	"github.com/skillmeter-io/skillmeter/internal/score"
	"github.com/skillmeter-io/skillmeter/internal/signals"
	"github.com/skillmeter-io/skillmeter/internal/types"
)

func main() {
	app := &cli.App{
		Name:  "scorectl",
		Usage: "Compute composite skill scores from signal records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "scoring config file (YAML); defaults ship in the binary",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "raw",
				Usage:     "Run the raw pipeline over one record file per individual",
				ArgsUsage: "FILE [FILE...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "from-activity",
						Usage: "treat input files as platform activity and derive signals first",
					},
				},
				Action: runRaw,
			},
			{
				Name:      "rank",
				Usage:     "Run the rank pipeline over one record file per individual",
				ArgsUsage: "FILE [FILE...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "from-activity",
						Usage: "treat input files as platform activity and derive signals first",
					},
					&cli.StringFlag{
						Name:  "data-dir",
						Usage: "reference store directory; omit to use inline references only",
					},
					&cli.BoolFlag{
						Name:  "reference-person",
						Usage: "subjects are members of the reference population",
					},
				},
				Action: runRank,
			},
			{
				Name:      "load-refs",
				Usage:     "Replace stored reference distributions from a JSON file (signal id -> values)",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data-dir",
						Usage:    "reference store directory",
						Required: true,
					},
				},
				Action: runLoadRefs,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("scorectl failed", "error", err)
		os.Exit(1)
	}
}

func newEngine(c *cli.Context) (*score.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return score.NewEngine(cfg)
}

func runRaw(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one input file is required", 1)
	}
	engine, err := newEngine(c)
	if err != nil {
		return err
	}

	return forEachRecord(c, func(path string, set score.SignalSet) (*score.ScoreResult, error) {
		return engine.ScoreRaw(set)
	})
}

func runRank(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one input file is required", 1)
	}
	engine, err := newEngine(c)
	if err != nil {
		return err
	}

	var refs score.ReferenceSource
	if dir := c.String("data-dir"); dir != "" {
		store, err := reference.NewStore(dir)
		if err != nil {
			return err
		}
		defer store.Close()
		refs = store
	}
	opts := score.RankOptions{ReferencePerson: c.Bool("reference-person")}

	return forEachRecord(c, func(path string, set score.SignalSet) (*score.ScoreResult, error) {
		return engine.ScoreRank(c.Context, set, refs, opts)
	})
}

// forEachRecord computes each individual's score in isolation: a failure on
// one file is reported and counted but never blocks the remaining files.
func forEachRecord(c *cli.Context, compute func(path string, set score.SignalSet) (*score.ScoreResult, error)) error {
	out := json.NewEncoder(os.Stdout)
	failed := 0

	for _, path := range c.Args().Slice() {
		set, err := readSignals(path, c.Bool("from-activity"))
		if err != nil {
			slog.Error("Failed to read record", "file", path, "error", err)
			failed++
			continue
		}

		result, err := compute(path, set)
		if err != nil {
			slog.Error("Score computation failed", "file", path, "error", err)
			failed++
			continue
		}

		if err := out.Encode(struct {
			File string `json:"file"`
			*score.ScoreResult
		}{File: path, ScoreResult: result}); err != nil {
			return err
		}
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d computations failed", failed, c.NArg()), 1)
	}
	return nil
}

func readSignals(path string, fromActivity bool) (score.SignalSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if fromActivity {
		var activity signals.Activity
		if err := json.Unmarshal(data, &activity); err != nil {
			return nil, fmt.Errorf("invalid activity record: %w", err)
		}
		return signals.Derive(activity, slog.Default()), nil
	}

	var req types.ScoreRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid signal record: %w", err)
	}
	return req.SignalSet(), nil
}

func runLoadRefs(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one distributions file is required", 1)
	}

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	var distributions map[string][]float64
	if err := json.Unmarshal(data, &distributions); err != nil {
		return fmt.Errorf("invalid distributions file: %w", err)
	}

	store, err := reference.NewStore(c.String("data-dir"))
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	for signalID, values := range distributions {
		if err := store.Replace(ctx, signalID, values); err != nil {
			return err
		}
		slog.Info("Loaded reference distribution", "signal", signalID, "population", len(values))
	}
	return nil
}
