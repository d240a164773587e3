package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pbaille/nutriscan/internal/assess"
	"github.com/pbaille/nutriscan/internal/domain"
	"github.com/pbaille/nutriscan/internal/nutrient"
	"github.com/pbaille/nutriscan/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func assessCmd() *cobra.Command {
	var in assess.Input
	var foods, allergies, logFile string
	var seed uint64

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Predict a micronutrient deficiency",
		Long: `Predict a micronutrient deficiency from demographics, symptoms and food intake.

Intake comes from --foods (one day), --log-file (a YAML or JSON map of
date to foods), or your saved log when logged in. Without any of these
a generated log is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Foods = nutrient.SplitFoods(foods)
			in.Allergies = nutrient.SplitFoods(allergies)

			if logFile != "" {
				l, err := readLogFile(logFile)
				if err != nil {
					return err
				}
				in.Log = l
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			sess, err := currentSession(s)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("seed") {
				in.Seed = &seed
			}

			var recorder *store.Store
			if sess != nil {
				recorder = s
			}
			svc, err := buildService(cmd.Context(), recorder)
			if err != nil {
				return err
			}

			res, err := svc.Assess(cmd.Context(), sess, in)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&in.Age, "age", 0, "age in years (default from profile)")
	f.StringVar(&in.Gender, "gender", "", "Female, Male or Other (default from profile)")
	f.Float64Var(&in.WeightKg, "weight", 0, "weight in kg")
	f.Float64Var(&in.HeightCm, "height", 0, "height in cm")
	f.BoolVar(&in.Symptoms.Fatigue, "fatigue", false, "fatigue")
	f.BoolVar(&in.Symptoms.PaleSkin, "pale-skin", false, "pale skin")
	f.BoolVar(&in.Symptoms.HairLoss, "hair-loss", false, "hair loss")
	f.BoolVar(&in.Symptoms.Tingling, "tingling", false, "tingling sensation")
	f.BoolVar(&in.Symptoms.BonePain, "bone-pain", false, "bone pain")
	f.BoolVar(&in.Symptoms.Irritability, "irritability", false, "irritability")
	f.StringVar(&foods, "foods", "", "comma separated foods eaten in one day")
	f.StringVar(&logFile, "log-file", "", "YAML or JSON food log file")
	f.StringVar(&allergies, "allergies", "", "comma separated foods to leave out")
	f.Uint64Var(&seed, "seed", 0, "seed for a generated log")
	f.BoolVar(&in.NoSave, "no-save", false, "do not record the result in your history")
	cmd.MarkFlagRequired("weight")
	cmd.MarkFlagRequired("height")
	return cmd
}

func readLogFile(path string) (domain.FoodLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	var l domain.FoodLog
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse log file: %w", err)
	}
	for day := range l {
		if _, err := time.Parse(domain.DateLayout, day); err != nil {
			return nil, fmt.Errorf("log file: bad date %q", day)
		}
	}
	return l, nil
}

func printResult(res *assess.Result) {
	if g := res.Generated; g != nil {
		fmt.Printf("No food log given; using a generated %d-day log (seed %d)\n", len(g.Log), g.Seed)
		if g.Saved {
			fmt.Println("It is now your saved log. See 'nutriscan log show'.")
		}
	}

	fmt.Printf("\nPrediction: %s\n", res.Label)
	fmt.Printf("BMI:        %.2f\n", res.BMI)
	fmt.Printf("Food score: %.0f\n", res.FoodScore)

	fmt.Printf("\n%-8s %10s %8s %6s\n", "Nutrient", "Consumed", "RDA", "%RDA")
	for _, c := range res.Comparison {
		fmt.Printf("%-8s %7.2f %-2s %8.1f %5.0f%%\n", c.Nutrient, c.Consumed, c.Unit, c.RDA, c.PercentRDA)
	}

	fmt.Printf("\n%s\n", res.Suggestion.Message)
	if len(res.Suggestion.Removed) > 0 {
		fmt.Printf("(left out for allergies: %s)\n", strings.Join(res.Suggestion.Removed, ", "))
	}
	if res.Suggestion.Tip != "" {
		fmt.Printf("Tip: %s\n", res.Suggestion.Tip)
	}

	if len(res.Notices) > 0 {
		fmt.Println("\nNotes:")
		for _, n := range res.Notices {
			if n.Date != "" {
				fmt.Printf("  %s  %s\n", n.Date, n.Message())
			} else {
				fmt.Printf("  %s\n", n.Message())
			}
		}
	}

	if res.AssessmentID != "" {
		fmt.Printf("\nSaved as %s\n", res.AssessmentID[:8])
	}
	if res.Label == domain.LabelUnknown {
		fmt.Println("\nThe model returned an unrecognized class.")
	}
}
