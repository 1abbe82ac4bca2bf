package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"pantrypal-api/internal/app"
	"pantrypal-api/internal/clock"
	"pantrypal-api/internal/config"
	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/mailer"
	"pantrypal-api/internal/model"
	"pantrypal-api/internal/pantry"
	"pantrypal-api/internal/service"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newApp loads the config and opens the stores. The caller must defer
// app.Close().
func newApp(ctx context.Context, migrate bool) (*app.App, *config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
		log = logging.New(os.Stderr, logging.Options{Debug: cfg.App.Debug})
	}

	a, err := app.Open(ctx, cfg, log, app.Options{Migrate: migrate})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, cfg, log, nil
}

func authService(a *app.App, cfg *config.Config, log *slog.Logger) *service.AuthService {
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// Only used to sign a token nobody receives.
		b := make([]byte, 32)
		_, _ = rand.Read(b)
		secret = hex.EncodeToString(b)
	}
	tokens := service.NewTokenService(secret, cfg.Auth.TokenTTL, a.Cache, clock.Real{})
	return service.NewAuthService(a.Users, tokens, a.Cache, mailer.NewLogMailer(log), clock.Real{}, log, service.AuthConfig{
		AppName:    cfg.App.Name,
		BcryptCost: cfg.Auth.BcryptCost,
	})
}

var rootCmd = &cobra.Command{
	Use:          "pantryctl",
	Short:        "PantryPal administration tool",
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, _, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (item store: %s)\n", a.StoreType)
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")

		password, err := readPassword(cmd)
		if err != nil {
			return err
		}

		a, cfg, log, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := authService(a, cfg, log).Register(cmd.Context(), email, password, name)
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", sess.User.Email, sess.User.ID)
		return nil
	},
}

// readPassword prompts twice without echo when stdin is a terminal, and
// reads one line otherwise.
func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		var line string
		if _, err := fmt.Fscanln(cmd.InOrStdin(), &line); err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return line, nil
	}

	out := cmd.ErrOrStderr()
	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	fmt.Fprint(out, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}

// items command
var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage pantry items",
}

var itemsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import items from a TOML, YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("user")

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		items, err := parseItemFile(args[0], f)
		if err != nil {
			return err
		}

		a, cfg, log, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := authService(a, cfg, log).UserByEmail(cmd.Context(), email)
		if err != nil {
			return fmt.Errorf("finding user %s: %w", email, err)
		}

		creator := service.NewItemService(a.Live, clock.Real{}, log)
		var imported int
		for i, in := range items {
			if _, err := creator.Create(cmd.Context(), user.ID, in); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "item %d (%q): %v\n", i+1, in.Name, err)
				continue
			}
			imported++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d items for %s\n", imported, len(items), user.Email)
		if imported < len(items) {
			return fmt.Errorf("%d items failed", len(items)-imported)
		}
		return nil
	},
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's pantry items",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("user")
		query, _ := cmd.Flags().GetString("q")
		sortFlag, _ := cmd.Flags().GetString("sort")
		desc, _ := cmd.Flags().GetBool("desc")

		by, err := pantry.ParseSortKey(sortFlag)
		if err != nil {
			return err
		}

		a, cfg, log, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := authService(a, cfg, log).UserByEmail(cmd.Context(), email)
		if err != nil {
			return fmt.Errorf("finding user %s: %w", email, err)
		}
		docs, err := a.Live.Query(cmd.Context(), model.UserItemsQuery(user.ID))
		if err != nil {
			return fmt.Errorf("querying items: %w", err)
		}

		now := time.Now()
		report := pantry.NewNormalizer(clock.Real{}, log).NormalizeAll(docs)
		items := pantry.SortItems(pantry.Search(report.Items, query), by, !desc)
		printItems(cmd.OutOrStdout(), items)
		printStats(cmd.OutOrStdout(), pantry.Aggregate(report.Items, now), len(report.Rejected))
		return nil
	},
}

func printItems(w io.Writer, items []model.PantryItem) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tQTY\tUNIT\tCATEGORY\tEXPIRES\tID")
	for _, it := range items {
		expires := "-"
		if it.ExpirationDate != nil {
			expires = it.ExpirationDate.Format("2006-01-02")
			if it.IsExpired {
				expires += " (expired)"
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", it.Name, it.Quantity, it.Unit, it.Category, expires, it.ID)
	}
	tw.Flush()
}

func printStats(w io.Writer, st model.PantryStats, rejected int) {
	fmt.Fprintf(w, "\n%d items, %d expired, %d expiring soon, %d low stock\n",
		st.TotalItems, st.ExpiredCount, st.ExpiringSoonCount, st.LowQuantityCount)
	if len(st.Categories) > 0 {
		fmt.Fprintf(w, "Categories: %s\n", strings.Join(st.Categories, ", "))
	}
	if rejected > 0 {
		fmt.Fprintf(w, "%d malformed records skipped\n", rejected)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(migrateCmd)

	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
	userCreateCmd.Flags().String("email", "", "Account email")
	userCreateCmd.Flags().String("name", "", "Display name")
	_ = userCreateCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(itemsCmd)
	itemsCmd.AddCommand(itemsImportCmd)
	itemsImportCmd.Flags().String("user", "", "Owner email")
	_ = itemsImportCmd.MarkFlagRequired("user")

	itemsCmd.AddCommand(itemsListCmd)
	itemsListCmd.Flags().String("user", "", "Owner email")
	itemsListCmd.Flags().String("q", "", "Search name, category, unit and notes")
	itemsListCmd.Flags().String("sort", "recent", "Sort by name, category, expiration or recent")
	itemsListCmd.Flags().Bool("desc", false, "Reverse the sort order")
	_ = itemsListCmd.MarkFlagRequired("user")
}
