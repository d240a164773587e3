package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pbaille/nutriscan/internal/auth"
	"github.com/pbaille/nutriscan/internal/domain"
	"github.com/pbaille/nutriscan/internal/nutrient"
	"github.com/spf13/cobra"
)

func credentialsFlags(cmd *cobra.Command, username, password *string) {
	cmd.Flags().StringVarP(username, "username", "u", "", "username")
	cmd.Flags().StringVarP(password, "password", "p", "", "password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
}

func signupCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			u, err := auth.New(s).Create(username, password)
			if errors.Is(err, auth.ErrUserExists) {
				fmt.Printf("Username %q is already taken.\n", username)
				return err
			}
			if err != nil {
				return err
			}

			if err := login(u); err != nil {
				return err
			}
			fmt.Printf("Signed up as %s\n", u.Username)
			return nil
		},
	}

	credentialsFlags(cmd, &username, &password)
	return cmd
}

func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			u, err := auth.New(s).Verify(username, password)
			if errors.Is(err, auth.ErrInvalidCredentials) {
				fmt.Println("Invalid username or password.")
				return err
			}
			if err != nil {
				return err
			}

			if err := login(u); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", u.Username)
			return nil
		},
	}

	credentialsFlags(cmd, &username, &password)
	return cmd
}

func login(u *domain.User) error {
	iss, err := getIssuer()
	if err != nil {
		return err
	}
	token, err := iss.Issue(u)
	if err != nil {
		return err
	}
	return saveToken(token)
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.Remove(tokenPath()); err != nil && !os.IsNotExist(err) {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		},
	}
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
	}
	cmd.AddCommand(profileShowCmd())
	cmd.AddCommand(profileSetCmd())
	return cmd
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
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

			fmt.Printf("User:       %s\n", sess.Username)
			if sess.Profile == nil {
				fmt.Println("No profile yet. Use 'nutriscan profile set' to create one.")
				return nil
			}
			printProfile(sess.Profile)
			return nil
		},
	}
}

func printProfile(p *domain.UserProfile) {
	fmt.Printf("Name:       %s\n", p.Name)
	fmt.Printf("Age:        %d\n", p.Age)
	fmt.Printf("Gender:     %s\n", p.Gender)
	fmt.Printf("Allergies:  %s\n", strings.Join(p.Allergies.List(), ", "))
	fmt.Printf("Conditions: %s\n", strings.Join(p.Conditions(), ", "))
}

func profileSetCmd() *cobra.Command {
	var name, gender, allergies, conditions string
	var age int

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update your profile; unset flags keep their values",
		Long: fmt.Sprintf("Update your profile.\n\nAllergies: %s\nHealth conditions: %s",
			strings.Join(domain.AllergyOptions, ", "),
			strings.Join(domain.HealthConditionOptions, ", ")),
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

			p := &domain.UserProfile{}
			if sess.Profile != nil {
				p = sess.Profile
			}
			flags := cmd.Flags()
			if flags.Changed("name") {
				p.Name = name
			}
			if flags.Changed("age") {
				p.Age = age
			}
			if flags.Changed("gender") {
				p.Gender = gender
			}
			if flags.Changed("allergies") {
				p.Allergies = domain.NewAllergySet(nutrient.SplitFoods(allergies))
			}
			if flags.Changed("conditions") {
				p.HealthConditions = strings.Join(nutrient.SplitFoods(conditions), ",")
			}

			if err := p.Validate(); err != nil {
				return err
			}
			if err := s.SaveProfile(sess.UserID, p); err != nil {
				return err
			}

			fmt.Println("Profile saved.")
			printProfile(p)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().IntVar(&age, "age", 0, "age in years")
	cmd.Flags().StringVar(&gender, "gender", "", "Female, Male or Other")
	cmd.Flags().StringVar(&allergies, "allergies", "", "comma separated allergies")
	cmd.Flags().StringVar(&conditions, "conditions", "", "comma separated health conditions")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List your past assessments",
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

			list, err := s.ListAssessments(sess.UserID, limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No assessments yet. Use 'nutriscan assess' to run one.")
				return nil
			}

			for _, a := range list {
				fmt.Printf("%s  %s  %-22s BMI %.1f  score %.0f\n",
					a.ID[:8], a.CreatedAt.Format("2006-01-02 15:04"), a.Label, a.BMI, a.FoodScore)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of assessments to show")
	return cmd
}
