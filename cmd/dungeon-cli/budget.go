package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/budget"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/spf13/cobra"
)

type budgetOptions struct {
	level     int
	partySize int
	seed      string
	rooms     int
}

func newBudgetCmd(app *cli) *cobra.Command {
	opts := &budgetOptions{}
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Draw room budgets offline for a seed",
		Long: `budget runs the encounter budgeter over N placeholder rooms without
contacting the generator. The same seed always yields the same tiers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBudget(cmd, app, opts)
		},
	}

	cmd.Flags().IntVar(&opts.level, "level", 1, "party level, 1-20")
	cmd.Flags().IntVar(&opts.partySize, "npc", domain.BaselinePartySize, "number of player characters")
	cmd.Flags().StringVar(&opts.seed, "seed", "", "seed (default: current unix time)")
	cmd.Flags().IntVar(&opts.rooms, "rooms", 10, "number of rooms")
	return cmd
}

func runBudget(cmd *cobra.Command, app *cli, opts *budgetOptions) error {
	if opts.rooms < 0 {
		return domain.NewValidationError("rooms", opts.rooms, "must not be negative")
	}

	_, appLogger, err := app.load()
	if err != nil {
		return err
	}
	defer appLogger.Close()

	seed := opts.seed
	if seed == "" {
		seed = strconv.FormatInt(time.Now().Unix(), 10)
	}

	rooms := make([]domain.Room, opts.rooms)
	rooms, err = budget.NewBudgeter(appLogger.Logger).Assign(opts.level, opts.partySize, rooms, budget.NewSource(seed))
	if err != nil {
		return err
	}

	result := domain.DungeonResult{Rooms: rooms}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "seed %s, level %d, party of %d\n", seed, opts.level, opts.partySize)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tTIER\tXP")
	for i, room := range rooms {
		fmt.Fprintf(w, "%d\t%d\t%d\n", i+1, room.Budget.Tier, room.Budget.XP)
	}
	fmt.Fprintf(w, "total\t\t%d\n", result.TotalXP())
	return w.Flush()
}
