// Command simulate plays seeded games through the real match engine and a
// fake scheduler, and prints move statistics per board size. Two players are
// available: "perfect" remembers every revealed tile, "random" remembers
// nothing.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/memory-tiles/game/engine"
	"github.com/wricardo/memory-tiles/game/imageset"
	"github.com/wricardo/memory-tiles/game/schedule"
)

// Strategy selects how the simulated player chooses tiles.
type Strategy string

const (
	StrategyPerfect Strategy = "perfect"
	StrategyRandom  Strategy = "random"
)

// maxMoves aborts a game that cannot finish.
const maxMoves = 100000

// Result is the outcome of one simulated game.
type Result struct {
	GridSize engine.GridSize
	Seed     uint64
	Moves    int
}

// Stats summarizes a batch of games.
type Stats struct {
	Games int
	Min   int
	Max   int
	Mean  float64
}

type player struct {
	strategy Strategy
	rnd      engine.Rand
	seen     map[int]int
}

func newPlayer(strategy Strategy, rnd engine.Rand) *player {
	return &player{strategy: strategy, rnd: rnd, seen: make(map[int]int)}
}

func (p *player) observe(s engine.Session) {
	if p.strategy != StrategyPerfect {
		return
	}
	for i, t := range s.Tiles {
		if t.FaceUp {
			p.seen[i] = t.PairKey
		}
	}
}

// candidates lists face-down tiles, preferring ones never seen.
func (p *player) candidates(s engine.Session, exclude int) []int {
	var unseen, rest []int
	for i, t := range s.Tiles {
		if t.FaceUp || t.Matched || i == exclude {
			continue
		}
		rest = append(rest, i)
		if _, ok := p.seen[i]; !ok {
			unseen = append(unseen, i)
		}
	}
	if len(unseen) > 0 {
		return unseen
	}
	return rest
}

func (p *player) pick(list []int) int {
	return list[p.rnd.IntN(len(list))]
}

func (p *player) first(s engine.Session) int {
	if p.strategy == StrategyPerfect {
		byKey := make(map[int]int)
		for i, t := range s.Tiles {
			key, ok := p.seen[i]
			if !ok || t.Matched {
				continue
			}
			if j, ok := byKey[key]; ok {
				return j
			}
			byKey[key] = i
		}
	}
	return p.pick(p.candidates(s, -1))
}

func (p *player) second(s engine.Session, first int) int {
	if p.strategy == StrategyPerfect {
		key := s.Tiles[first].PairKey
		for i, t := range s.Tiles {
			if k, ok := p.seen[i]; ok && i != first && k == key && !t.Matched {
				return i
			}
		}
	}
	return p.pick(p.candidates(s, first))
}

// playGame runs one game to completion and returns its move count.
func playGame(grid engine.GridSize, seed uint64, strategy Strategy, images []string) (Result, error) {
	fake := schedule.NewFake()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	session := engine.NewSession("simulator", images, grid, engine.NewSeededRand(seed), start)
	game, err := engine.NewGame(session, engine.Options{Scheduler: fake})
	if err != nil {
		return Result{}, err
	}
	defer game.Close()

	p := newPlayer(strategy, engine.NewSeededRand(seed+1))
	click := func(i int) error {
		id := game.Snapshot().Tiles[i].ID
		if !game.ClickTile(id) {
			return fmt.Errorf("click on tile %d rejected", i)
		}
		p.observe(game.Snapshot())
		return nil
	}

	for !game.IsWon() {
		if game.Snapshot().MoveCount > maxMoves {
			return Result{}, errors.New("game did not finish")
		}

		first := p.first(game.Snapshot())
		if err := click(first); err != nil {
			return Result{}, err
		}
		if err := click(p.second(game.Snapshot(), first)); err != nil {
			return Result{}, err
		}
		fake.Advance(engine.DefaultMismatchDelay)
	}

	return Result{GridSize: grid, Seed: seed, Moves: game.Snapshot().MoveCount}, nil
}

func summarize(results []Result) Stats {
	if len(results) == 0 {
		return Stats{}
	}
	st := Stats{Games: len(results), Min: math.MaxInt}
	total := 0
	for _, r := range results {
		st.Min = min(st.Min, r.Moves)
		st.Max = max(st.Max, r.Moves)
		total += r.Moves
	}
	st.Mean = float64(total) / float64(len(results))
	return st
}

// run simulates games per board size for each strategy and writes a table.
func run(w io.Writer, games int, seed uint64, strategies []Strategy) error {
	if games <= 0 {
		return fmt.Errorf("games must be positive, got %d", games)
	}
	images := imageset.DefaultSet().Images

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GRID\tSTRATEGY\tGAMES\tBEST\tMIN\tMEAN\tMAX")
	for _, grid := range engine.GridSizes {
		for _, strategy := range strategies {
			results := make([]Result, 0, games)
			for i := 0; i < games; i++ {
				r, err := playGame(grid, seed+uint64(i), strategy, images)
				if err != nil {
					return fmt.Errorf("%dx%d %s seed %d: %w", grid, grid, strategy, seed+uint64(i), err)
				}
				results = append(results, r)
			}
			st := summarize(results)
			fmt.Fprintf(tw, "%dx%d\t%s\t%d\t%d\t%d\t%.1f\t%d\n",
				grid, grid, strategy, st.Games, grid.TileCount(), st.Min, st.Mean, st.Max)
		}
	}
	return tw.Flush()
}

func parseStrategies(names []string) ([]Strategy, error) {
	var out []Strategy
	for _, n := range names {
		switch s := Strategy(n); s {
		case StrategyPerfect, StrategyRandom:
			out = append(out, s)
		default:
			return nil, fmt.Errorf("unknown strategy %q", n)
		}
	}
	return out, nil
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Play seeded memory games and print move statistics",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "games", Value: 100, Usage: "Games per board size and strategy"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "Seed of the first game"},
			&cli.StringSliceFlag{Name: "strategy", Value: []string{"perfect", "random"}, Usage: "Strategies to run"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			strategies, err := parseStrategies(cmd.StringSlice("strategy"))
			if err != nil {
				return err
			}
			return run(cmd.Root().Writer, cmd.Int("games"), uint64(cmd.Int("seed")), strategies)
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
