package main

import (
	"context"
	"fmt"
	"time"

	"github.com/blogify/notifier/internal/auth"
	"github.com/blogify/notifier/internal/config"
	"github.com/blogify/notifier/internal/content"
	"github.com/blogify/notifier/internal/database"
	"github.com/blogify/notifier/internal/kernel"
	"github.com/blogify/notifier/internal/logger"
	"github.com/blogify/notifier/internal/push"
	"github.com/blogify/notifier/internal/relationships"
	"github.com/blogify/notifier/internal/seed"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the notifier's tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return err
		}
		if cfg.ContentStore == "mongo" {
			ms, err := content.ConnectMongo(cmd.Context(), cfg.MongoURI, cfg.MongoDatabase)
			if err != nil {
				return err
			}
			defer ms.Close(context.Background())
			if err := ms.EnsureIndexes(cmd.Context()); err != nil {
				return err
			}
		} else if err := content.NewSQLStore(db).Migrate(); err != nil {
			return err
		}
		fmt.Println("✓ Migrations complete")
		return nil
	},
}

var vapidKeysCmd = &cobra.Command{
	Use:   "vapid-keys",
	Short: "Generate a VAPID key pair for Web Push",
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", pub, priv)
		return nil
	},
}

var (
	seedMode  string
	seedClean bool
	seedRand  int64
	seedOpts  = seed.DefaultOptions()
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with fake users, follows, blogs and engagement",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close(db)
		if err := database.Migrate(db); err != nil {
			return err
		}

		k, err := kernel.Build(cmd.Context(), cfg, db)
		if err != nil {
			return err
		}
		k.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = k.Cleanup(ctx)
		}()

		s := seed.NewSeeder(k)
		if seedRand != 0 {
			s.WithSeed(seedRand)
		}
		if seedClean {
			if err := s.Clean(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("✓ Cleaned existing data")
		}

		switch seedMode {
		case "dev":
			stats, err := s.SeedDev(cmd.Context(), seedOpts)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Seeded %d users, %d follow requests (%d accepted), %d blogs, %d likes, %d comments\n",
				stats.Users, stats.Requests, stats.Accepted, stats.Blogs, stats.Likes, stats.Comments)
		case "test":
			users, err := s.SeedTest(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Printf("✓ %s\t%s\n", u.ID, u.Email)
			}
		default:
			return fmt.Errorf("unknown seed mode %q (want dev or test)", seedMode)
		}
		return nil
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a JWT for a user, for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close(db)
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}

		users := relationships.NewStore(db)
		user, err := users.GetUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		svc := auth.NewService([]byte(cfg.JWTSecret), users)
		if tokenTTL > 0 {
			svc.SetTTL(tokenTTL)
		}
		token, exp, err := svc.IssueToken(user)
		if err != nil {
			return err
		}
		if output == "json" {
			fmt.Printf("{\"token\":%q,\"expires_at\":%q}\n", token, exp.Format(time.RFC3339))
			return nil
		}
		fmt.Printf("export NOTIFIER_TOKEN=%s\n# expires %s\n", token, exp.Format(time.RFC3339))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedMode, "mode", "dev", "dev (random data) or test (fixed cast)")
	seedCmd.Flags().BoolVar(&seedClean, "clean", false, "Delete existing rows first")
	seedCmd.Flags().Int64Var(&seedRand, "seed", 0, "Random seed for a reproducible graph")
	seedCmd.Flags().IntVar(&seedOpts.Users, "users", seedOpts.Users, "Users to create")
	seedCmd.Flags().IntVar(&seedOpts.Follows, "follows", seedOpts.Follows, "Follow requests to send")
	seedCmd.Flags().IntVar(&seedOpts.Blogs, "blogs", seedOpts.Blogs, "Blogs to publish")
	seedCmd.Flags().IntVar(&seedOpts.Engagement, "engagement", seedOpts.Engagement, "Likes and comments to attempt")

	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default 24h)")
}

// openDatabase loads config and opens the configured database with logs
// going to stdout only.
func openDatabase() (*config.Config, *gorm.DB, error) {
	cfg := config.Load()
	if err := logger.Initialize(cfg.LogLevel, "-"); err != nil {
		return nil, nil, err
	}
	db, err := database.Open(database.Options{Driver: cfg.DBDriver, DSN: cfg.DatabaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, db, nil
}
