package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alexschlessinger/jurisearch/cost"
	"github.com/alexschlessinger/jurisearch/store"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"
)

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show per-model turn counts, average cost and vote ratios",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "recent",
				Usage: "Also list the N most recent turns",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := openStatsStore()
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to read statistics: %w", err)
			}
			writeStats(os.Stdout, stats)

			if n := cmd.Int("recent"); n > 0 {
				turns, err := s.RecentTurns(ctx, n)
				if err != nil {
					return fmt.Errorf("failed to read turns: %w", err)
				}
				fmt.Println()
				writeTurns(os.Stdout, turns)
			}
			return nil
		},
	}
}

func voteCommand() *cli.Command {
	return &cli.Command{
		Name:      "vote",
		Usage:     "Record a vote on a turn",
		ArgsUsage: "<turn-id> up|down",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("usage: vote <turn-id> up|down")
			}
			vote, err := store.ParseVote(cmd.Args().Get(1))
			if err != nil {
				return err
			}

			s, err := openStatsStore()
			if err != nil {
				return err
			}
			defer s.Close()

			id := cmd.Args().Get(0)
			if err := s.Vote(ctx, id, vote); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Vote '%s' recorded for %s\n", vote, id)
			return nil
		},
	}
}

func openStatsStore() (*store.Store, error) {
	return store.Open(store.DefaultPath(dataDir(&Config{DataDir: defaultDataDir})))
}

// writeStats renders per-model statistics as a table
func writeStats(w io.Writer, stats []store.ModelStats) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	tw.AppendHeader(table.Row{"Model", "Turns", "Avg cost ($)", "Total ($)", "Up", "Down", "Up ratio"})

	for _, s := range stats {
		ratio := "-"
		if s.Up+s.Down > 0 {
			ratio = fmt.Sprintf("%.0f%%", s.UpRatio()*100)
		}
		tw.AppendRow(table.Row{s.Model, s.Turns, cost.FormatDollars(s.AverageCost), cost.FormatDollars(s.TotalCost), s.Up, s.Down, ratio})
	}
	if len(stats) == 0 {
		tw.AppendRow(table.Row{"(no turns)", 0, cost.FormatDollars(0), cost.FormatDollars(0), 0, 0, "-"})
	}
	_ = tw.Render()
}

// writeTurns renders recent turns as a table
func writeTurns(w io.Writer, turns []store.Turn) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "When", "Model", "Question", "Cost ($)"})
	for _, t := range turns {
		tw.AppendRow(table.Row{t.ID, t.CreatedAt.Local().Format("2006-01-02 15:04"), t.Model, truncate(t.Question, 40), cost.FormatDollars(t.Cost)})
	}
	_ = tw.Render()
}
