package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pbaille/nutriscan/internal/domain"
	"github.com/pbaille/nutriscan/internal/mealgen"
	"github.com/pbaille/nutriscan/internal/nutrient"
	"github.com/spf13/cobra"
)

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Manage your food log",
	}
	cmd.AddCommand(logShowCmd())
	cmd.AddCommand(logSetCmd())
	cmd.AddCommand(logGenerateCmd())
	cmd.AddCommand(logClearCmd())
	return cmd
}

func logShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your food log",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			sess, err := requireSession(s)
			if err != nil {
				return err
			}

			l, err := s.GetLog(sess.UserID)
			if err != nil {
				return err
			}
			if len(l) == 0 {
				fmt.Println("Food log is empty. Use 'nutriscan log set' or 'nutriscan log generate'.")
				return nil
			}

			printLog(l)
			return nil
		},
	}
}

func printLog(l domain.FoodLog) {
	for _, e := range l.Entries() {
		fmt.Printf("%s  %s\n", e.Date, truncate(strings.Join(e.Items, ", "), 70))
	}
}

func parseDate(s string) (string, error) {
	if s == "today" {
		return time.Now().Format(domain.DateLayout), nil
	}
	if _, err := time.Parse(domain.DateLayout, s); err != nil {
		return "", fmt.Errorf("date must be YYYY-MM-DD or 'today': %q", s)
	}
	return s, nil
}

func logSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [date] [foods]",
		Short: "Set the foods eaten on a day (comma separated)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDate(args[0])
			if err != nil {
				return err
			}
			items := nutrient.SplitFoods(strings.Join(args[1:], ","))

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			sess, err := requireSession(s)
			if err != nil {
				return err
			}

			if err := s.PutLogDay(sess.UserID, day, items); err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", day, strings.Join(items, ", "))
			return nil
		},
	}
}

func logGenerateCmd() *cobra.Command {
	var seed uint64
	var days int
	var end string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Replace your log with a generated one",
		RunE: func(cmd *cobra.Command, args []string) error {
			endDay := time.Now()
			if end != "" {
				d, err := parseDate(end)
				if err != nil {
					return err
				}
				endDay, _ = time.Parse(domain.DateLayout, d)
			}
			if !cmd.Flags().Changed("seed") {
				seed = uint64(time.Now().UnixNano())
			}
			if days <= 0 {
				days = cfg.LogDays
			}
			if days > mealgen.MaxDays {
				return fmt.Errorf("days must be at most %d", mealgen.MaxDays)
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			sess, err := requireSession(s)
			if err != nil {
				return err
			}

			l := mealgen.New(seed).Log(endDay, days)
			if err := s.ReplaceLog(sess.UserID, l); err != nil {
				return err
			}

			fmt.Printf("Generated %d days (seed %d)\n", len(l), seed)
			printLog(l)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (default: time based)")
	cmd.Flags().IntVarP(&days, "days", "d", 0, "number of days (default from config)")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD (default today)")
	return cmd
}

func logClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [date]",
		Short: "Remove one day from your log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDate(args[0])
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			sess, err := requireSession(s)
			if err != nil {
				return err
			}

			if err := s.DeleteLogDay(sess.UserID, day); err != nil {
				return err
			}
			fmt.Printf("Cleared %s\n", day)
			return nil
		},
	}
}
