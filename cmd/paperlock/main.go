package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"paperlock/internal/app"
	"paperlock/internal/config"
	"paperlock/internal/paperlock"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a PaperlockApp. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "doc release").
func newApp(ctx context.Context, command string) (*app.PaperlockApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewPaperlockApp(ctx, cfg, command)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// withApp opens the app for cmd, runs fn and closes the app. With --metrics
// the invocation's measurements are printed to stderr afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.PaperlockApp) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd.CommandPath())
	if err != nil {
		return err
	}
	defer a.Close()

	runErr := fn(ctx, a)

	if show, _ := cmd.Flags().GetBool("metrics"); show {
		if err := a.Metrics().WriteText(os.Stderr); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

var stdin = bufio.NewReader(os.Stdin)

// readPassword prompts on stderr and reads without echo when stdin is a
// terminal; otherwise it reads one line from stdin.
func readPassword(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		return pw, nil
	}

	line, err := stdin.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

// parseUnlockTime accepts RFC 3339 timestamps or a duration from now ("+2h").
func parseUnlockTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "+") {
		d, err := time.ParseDuration(s[1:])
		if err != nil {
			return nil, fmt.Errorf("parsing unlock duration: %w", err)
		}
		t := time.Now().Add(d).UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("parsing unlock time: %w", err)
	}
	return &t, nil
}

func formatUnlock(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.UTC().Format(time.RFC3339)
}

var rootCmd = &cobra.Command{
	Use:          "paperlock",
	Short:        "Time-locked encrypted exam paper custody",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := defaults.NewConfig()

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir:  %s\n", defaults.BaseDir)
		fmt.Printf("Blobs:     %s\n", defaults.BlobDir)
		fmt.Printf("Ledger:    %s\n", defaults.ChainDir)
		fmt.Printf("Database:  %s\n", defaults.DatabaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		fmt.Printf("Blob Store:     %s\n", cfg.BlobStore.Type)
		fmt.Printf("Chain:          %s\n", cfg.Chain.Type)
		fmt.Printf("Database:       %s\n", cfg.Database.Type)
		fmt.Printf("KDF Iterations: %d\n", cfg.Crypto.KDFIterations)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nProblems:\n%v\n", err)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage user key pairs",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate USER",
	Short: "Generate a key pair for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.PaperlockApp) error {
			kp, err := a.GenerateKeys(ctx, args[0], password)
			if err != nil {
				return fmt.Errorf("generating keys: %w", err)
			}
			fmt.Printf("User:       %s\n", kp.UserID)
			fmt.Printf("Version:    %d\n", kp.Version)
			fmt.Printf("Public Key: %s\n", kp.PublicKey)
			return nil
		})
	},
}

var keysRotateCmd = &cobra.Command{
	Use:   "rotate USER",
	Short: "Re-wrap a user's private key under a new password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldPassword, err := readPassword("Current password: ")
		if err != nil {
			return err
		}
		newPassword, err := readPassword("New password: ")
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.PaperlockApp) error {
			kp, err := a.RotatePassword(ctx, args[0], oldPassword, newPassword)
			if err != nil {
				return fmt.Errorf("rotating password: %w", err)
			}
			fmt.Printf("Rotated %s to version %d\n", kp.UserID, kp.Version)
			return nil
		})
	},
}

var keysShowCmd = &cobra.Command{
	Use:   "show USER",
	Short: "Show a user's current public key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.PaperlockApp) error {
			kp, err := a.KeyPair(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("User:       %s\n", kp.UserID)
			fmt.Printf("Version:    %d\n", kp.Version)
			fmt.Printf("Created:    %s\n", kp.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Public Key: %s\n", kp.PublicKey)
			return nil
		})
	},
}

// doc command
var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Submit, release and inspect documents",
}

var docSubmitCmd = &cobra.Command{
	Use:   "submit FILE",
	Short: "Encrypt a file to a recipient and register it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		owner, _ := cmd.Flags().GetString("owner")
		recipient, _ := cmd.Flags().GetString("recipient")
		version, _ := cmd.Flags().GetInt64("version")
		unlockFlag, _ := cmd.Flags().GetString("unlock")

		unlock, err := parseUnlockTime(unlockFlag)
		if err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app.PaperlockApp) error {
			rec, err := a.SubmitFile(ctx, app.SubmitParams{
				Path:        args[0],
				DocumentID:  id,
				OwnerID:     owner,
				RecipientID: recipient,
				Version:     version,
				UnlockTime:  unlock,
			})
			if err != nil {
				return fmt.Errorf("submitting: %w", err)
			}
			fmt.Printf("Document: %s\n", rec.Document.ID)
			fmt.Printf("Tx:       %s\n", rec.TxID)
			fmt.Printf("Hash:     %s\n", rec.Document.PlaintextHash)
			fmt.Printf("Unlock:   %s\n", formatUnlock(rec.Document.UnlockTime))
			return nil
		})
	},
}

var docReleaseCmd = &cobra.Command{
	Use:   "release DOCUMENT_ID",
	Short: "Decrypt a document once its unlock time has passed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		requester, _ := cmd.Flags().GetString("user")
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = args[0] + ".out"
		}

		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app.PaperlockApp) error {
			rec, err := a.ReleaseToFile(ctx, args[0], requester, password, out)
			if err != nil {
				var tle *paperlock.TimeLockError
				if errors.As(err, &tle) {
					return fmt.Errorf("document is locked for another %s", time.Until(tle.UnlockTime).Truncate(time.Second))
				}
				return fmt.Errorf("releasing: %w", err)
			}
			fmt.Printf("Released %s (tx %s) to %s\n", rec.Document.ID, rec.TxID, out)
			return nil
		})
	},
}

var docInspectCmd = &cobra.Command{
	Use:   "inspect DOCUMENT_ID",
	Short: "Show a document's ledger metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, _ := cmd.Flags().GetString("user")

		return withApp(cmd, func(ctx context.Context, a *app.PaperlockApp) error {
			doc, err := a.Inspect(ctx, args[0], actor)
			if err != nil {
				return err
			}
			fmt.Printf("Document:  %s (v%d)\n", doc.ID, doc.Version)
			fmt.Printf("Status:    %s (%s)\n", doc.Status, paperlock.WorkflowLabel(doc.Status))
			fmt.Printf("Owner:     %s\n", doc.OwnerID)
			fmt.Printf("Recipient: %s\n", doc.RecipientID)
			fmt.Printf("Unlock:    %s\n", formatUnlock(doc.UnlockTime))
			fmt.Printf("Hash:      %s\n", doc.PlaintextHash)
			fmt.Printf("Blob:      %s\n", doc.BlobLocator)
			return nil
		})
	},
}

var docHistoryCmd = &cobra.Command{
	Use:   "history DOCUMENT_ID",
	Short: "View a document's ledger history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.PaperlockApp) error {
			records, err := a.History(ctx, args[0])
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%s  %-10s  %s\n",
					r.CommittedAt.Format("2006-01-02 15:04:05"),
					r.Document.Status,
					r.TxID,
				)
			}

			events, err := a.Events(ctx, args[0])
			if err != nil {
				return err
			}
			if len(events) > 0 {
				fmt.Println()
			}
			for _, e := range events {
				fmt.Printf("event %-20s %s\n", e.Name, e.TxID)
			}
			return nil
		})
	},
}

var docVerifyCmd = &cobra.Command{
	Use:   "verify DOCUMENT_ID FILE",
	Short: "Check a file against the document's registered hash",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.PaperlockApp) error {
			ok, err := a.VerifyFile(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s does not match document %s", args[1], args[0])
			}
			fmt.Println("OK")
			return nil
		})
	},
}

var docArchiveCmd = &cobra.Command{
	Use:   "archive DOCUMENT_ID",
	Short: "Archive a released document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, _ := cmd.Flags().GetString("user")

		return withApp(cmd, func(ctx context.Context, a *app.PaperlockApp) error {
			rec, err := a.Archive(ctx, args[0], actor)
			if err != nil {
				return fmt.Errorf("archiving: %w", err)
			}
			fmt.Printf("Archived %s (tx %s)\n", rec.Document.ID, rec.TxID)
			return nil
		})
	},
}

// audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the access log",
}

var auditListCmd = &cobra.Command{
	Use:   "list DOCUMENT_ID",
	Short: "List access log entries for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.PaperlockApp) error {
			entries, err := a.AuditTrail(ctx, args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No access recorded.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("#%d  %s  %-16s  %-16s  %s  %v\n",
					e.Seq,
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.Action,
					e.ActorID,
					e.Origin,
					e.Details,
				)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("metrics", false, "Print collected metrics to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysGenerateCmd)
	keysCmd.AddCommand(keysRotateCmd)
	keysCmd.AddCommand(keysShowCmd)

	// doc subcommands
	docCmd.AddCommand(docSubmitCmd)
	docSubmitCmd.Flags().String("id", "", "Document ID (generated when empty)")
	docSubmitCmd.Flags().String("owner", "", "Submitting user")
	docSubmitCmd.Flags().String("recipient", "", "User the document is encrypted to")
	docSubmitCmd.Flags().Int64("version", 1, "Document version")
	docSubmitCmd.Flags().String("unlock", "", "Unlock time (RFC 3339, or +DURATION from now)")
	docSubmitCmd.MarkFlagRequired("owner")
	docSubmitCmd.MarkFlagRequired("recipient")

	docCmd.AddCommand(docReleaseCmd)
	docReleaseCmd.Flags().StringP("user", "u", "", "Requesting user")
	docReleaseCmd.Flags().StringP("out", "o", "", "Output file (default DOCUMENT_ID.out)")
	docReleaseCmd.MarkFlagRequired("user")

	docCmd.AddCommand(docInspectCmd)
	docInspectCmd.Flags().StringP("user", "u", "", "Viewing user")
	docInspectCmd.MarkFlagRequired("user")

	docCmd.AddCommand(docHistoryCmd)
	docCmd.AddCommand(docVerifyCmd)

	docCmd.AddCommand(docArchiveCmd)
	docArchiveCmd.Flags().StringP("user", "u", "", "Archiving user")
	docArchiveCmd.MarkFlagRequired("user")

	// audit subcommands
	auditCmd.AddCommand(auditListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(auditCmd)
}
