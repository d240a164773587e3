package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbaille/nutriscan/internal/api"
	"github.com/pbaille/nutriscan/internal/assess"
	"github.com/pbaille/nutriscan/internal/auth"
	"github.com/pbaille/nutriscan/internal/classifier"
	"github.com/pbaille/nutriscan/internal/config"
	"github.com/pbaille/nutriscan/internal/embedding"
	"github.com/pbaille/nutriscan/internal/match"
	"github.com/pbaille/nutriscan/internal/nutrient"
	"github.com/pbaille/nutriscan/internal/session"
	"github.com/pbaille/nutriscan/internal/source"
	"github.com/pbaille/nutriscan/internal/store"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	dbPath  string
	cfg     *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "nutriscan",
		Short:         "Micronutrient deficiency screening from food logs and symptoms",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				c.DBPath = dbPath
			}
			cfg = c
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")

	rootCmd.AddCommand(assessCmd())
	rootCmd.AddCommand(signupCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getStore() (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(cfg.DBPath)
}

func buildModel() (classifier.Model, error) {
	if cfg.ModelKind == config.ModelRemote {
		m, err := classifier.NewRemoteModel(cfg.ModelURL, cfg.ModelAPIKey)
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	var m *classifier.TreeModel
	var err error
	if cfg.ModelPath != "" {
		m, err = classifier.LoadTreeModelFile(cfg.ModelPath)
	} else {
		m, err = classifier.DefaultModel()
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func buildAggregator(ctx context.Context) (*nutrient.Aggregator, error) {
	catalog, err := source.LoadCatalog(ctx, cfg.CatalogSource)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var scorer match.Scorer
	if cfg.Scorer == config.ScorerEmbedding {
		svc, err := embedding.New(cfg.VoyageAPIKey)
		if err != nil {
			return nil, err
		}
		es := embedding.NewScorer(svc)
		if err := es.Warm(ctx, catalog.Names()); err != nil {
			return nil, fmt.Errorf("embed catalog: %w", err)
		}
		scorer = es
	} else {
		scorer, _ = match.ByName(cfg.Scorer)
	}

	return nutrient.NewAggregator(catalog,
		nutrient.WithScorer(scorer),
		nutrient.WithThreshold(cfg.MatchThreshold),
	), nil
}

// buildService wires the assessment pipeline. st may be nil.
func buildService(ctx context.Context, st *store.Store) (*assess.Service, error) {
	agg, err := buildAggregator(ctx)
	if err != nil {
		return nil, err
	}
	model, err := buildModel()
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	var recorder assess.Store
	if st != nil {
		recorder = st
	}
	return assess.New(agg, model, cfg.SuggestionTable(), recorder, assess.WithLogDays(cfg.LogDays)), nil
}

func getIssuer() (*session.Issuer, error) {
	if err := cfg.EnsureSecret(); err != nil {
		return nil, err
	}
	return session.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
}

func tokenPath() string {
	return filepath.Join(filepath.Dir(cfg.DBPath), "session.token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenPath()), 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(tokenPath(), []byte(token+"\n"), 0600)
}

// currentSession restores the logged in user, with profile if one is saved.
// It returns nil without error when nobody is logged in.
func currentSession(st *store.Store) (*session.Session, error) {
	data, err := os.ReadFile(tokenPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	iss, err := getIssuer()
	if err != nil {
		return nil, err
	}
	sess, err := iss.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w (run 'nutriscan login' again)", err)
	}

	profile, err := st.GetProfile(sess.UserID)
	switch {
	case err == nil:
		sess.Profile = profile
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	return sess, nil
}

// requireSession is currentSession for commands that need a user
func requireSession(st *store.Store) (*session.Session, error) {
	sess, err := currentSession(st)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("not logged in. Use 'nutriscan login' first")
	}
	return sess, nil
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			// Note: don't defer s.Close() as server runs indefinitely

			svc, err := buildService(cmd.Context(), s)
			if err != nil {
				return err
			}
			iss, err := getIssuer()
			if err != nil {
				return err
			}

			if addr == "" {
				addr = cfg.Addr
			}
			server := api.New(api.Deps{
				Store:       s,
				Assess:      svc,
				Credentials: auth.New(s),
				Issuer:      iss,
				LogDays:     cfg.LogDays,
			}, addr)
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (overrides config)")
	return cmd
}
