package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mdnotes/internal/app"
	"mdnotes/internal/config"
	"mdnotes/internal/markdown"
	"mdnotes/internal/notes"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a NotesApp. Unless --no-sync is given
// the sync session is initialized, which may run a startup cycle.
// The caller must defer app.Close().
func newApp(cmd *cobra.Command) (*app.NotesApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewNotesApp(cmd.Context(), cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	if noSync, _ := cmd.Flags().GetBool("no-sync"); !noSync {
		if err := a.Start(cmd.Context()); err != nil {
			a.Close()
			return nil, fmt.Errorf("starting sync: %w", err)
		}
	}

	return a, nil
}

// readContent returns the joined args, or stdin when there are none.
func readContent(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(b), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var rootCmd = &cobra.Command{
	Use:          "mdnotes",
	Short:        "Markdown notes that sync across devices",
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

		deviceID := uuid.New().String()
		cfg := config.NewConfig(deviceID, defaults.BaseDir)

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults.BaseDir)
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
		fmt.Printf("Device ID:  %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Remote:     %s\n", cfg.Remote.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the key pair that encrypts the sync object",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetupKeys(); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Println("Key pair generated. Copy both key files to every device that syncs.")
		return nil
	},
}

// note command
var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes",
}

var noteNewCmd = &cobra.Command{
	Use:   "new [CONTENT...]",
	Short: "Create a note from the arguments or stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(args)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.CreateNote(cmd.Context(), content)
		if err != nil {
			return fmt.Errorf("creating note: %w", err)
		}
		fmt.Printf("Created %s  %s\n", n.ID, n.Title)
		return nil
	},
}

var noteImportCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Create notes from markdown files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, path := range args {
			n, err := a.ImportFile(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("importing %s: %w", path, err)
			}
			fmt.Printf("Imported %s  %s\n", n.ID, n.Title)
		}
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.ListNotes(cmd.Context())
		if err != nil {
			return err
		}

		if len(list) == 0 {
			fmt.Println("No notes.")
			return nil
		}

		for _, n := range list {
			fmt.Printf("%s  %s  %-30s  %s\n",
				shortID(n.ID),
				n.UpdatedAt.Local().Format("2006-01-02 15:04"),
				n.Title,
				markdown.Preview(n.Content),
			)
		}
		return nil
	},
}

var noteShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a note's markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.GetNote(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(n.Content)
		return nil
	},
}

var noteEditCmd = &cobra.Command{
	Use:   "edit ID [CONTENT...]",
	Short: "Replace a note's content from the arguments or stdin",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(args[1:])
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.EditNote(cmd.Context(), args[0], content)
		if err != nil {
			return fmt.Errorf("editing note: %w", err)
		}
		fmt.Printf("Updated %s  %s\n", n.ID, n.Title)
		return nil
	},
}

var noteColorCmd = &cobra.Command{
	Use:   "color ID COLOR",
	Short: "Set a note's color",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.SetColor(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("setting color: %w", err)
		}
		fmt.Printf("%s is now %s\n", n.ID, n.Color)
		return nil
	},
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "Delete notes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.DeleteNotes(cmd.Context(), args)
		if err != nil {
			return fmt.Errorf("deleting notes: %w", err)
		}
		fmt.Printf("Deleted %d note(s)\n", count)
		return nil
	},
}

var noteSaveCmd = &cobra.Command{
	Use:   "save ID [CONTENT...]",
	Short: "Write a note under an exact id from the arguments or stdin",
	Long: `Write a note under an exact id, creating it when the id is new.
An existing note keeps its creation time, and a deleted one is restored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		color, _ := cmd.Flags().GetString("color")
		content, err := readContent(args[1:])
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.SaveNote(cmd.Context(), args[0], title, color, content)
		if err != nil {
			return fmt.Errorf("saving note: %w", err)
		}
		fmt.Printf("Saved %s  %s\n", n.ID, n.Title)
		return nil
	},
}

var noteMoveCmd = &cobra.Command{
	Use:   "move ID X Y WIDTH HEIGHT",
	Short: "Set a note's window position and size",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dims [4]int
		for i, raw := range args[1:] {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid number %q: %w", raw, err)
			}
			dims[i] = v
		}
		ws := notes.WindowState{X: dims[0], Y: dims[1], Width: dims[2], Height: dims[3]}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.MoveNote(cmd.Context(), args[0], ws)
		if err != nil {
			return fmt.Errorf("moving note: %w", err)
		}
		fmt.Printf("%s at %d,%d size %dx%d\n", shortID(n.ID), ws.X, ws.Y, ws.Width, ws.Height)
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize notes with the remote",
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run a sync cycle now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.SyncNow(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		switch res.Outcome {
		case notes.OutcomeDelegated:
			fmt.Println("Sync requested from the running mdnotes process.")
		case notes.OutcomeSkipped:
			fmt.Println("Sync skipped: remote is not authenticated.")
		default:
			fmt.Printf("Sync %s: %d note(s) as %s\n", res.Outcome, res.Notes, res.Identity)
		}
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.SyncStatus(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Status:   %s\n", st.Indicator())
		fmt.Printf("Role:     %s\n", a.Role())
		if st.LastSyncedIdentity != "" {
			fmt.Printf("Identity: %s\n", st.LastSyncedIdentity)
		}
		if st.LastRun != nil {
			fmt.Printf("Last run: %s  %s\n", st.LastRun.StartedAt.Local().Format("2006-01-02 15:04:05"), st.LastRun.Status)
			if st.LastRun.Error != "" {
				fmt.Printf("Error:    %s\n", st.LastRun.Error)
			}
		}
		return nil
	},
}

var syncHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No sync runs recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt != nil {
				duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-9s  %s  %-8s  %-9s  %s  %s\n",
				r.ID,
				r.Reason,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status,
				r.Outcome,
				duration,
				r.Error,
			)
		}
		return nil
	},
}

var syncEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn sync on",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.EnableSync(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Sync enabled.")
		return nil
	},
}

var syncDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn sync off",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DisableSync(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Sync disabled.")
		return nil
	},
}

var syncExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the remote sync object as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.ExportRemote(cmd.Context(), os.Stdout)
		if err != nil {
			return fmt.Errorf("exporting remote: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %d record(s)\n", count)
		return nil
	},
}

// daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Serve sync requests from other mdnotes processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Serving sync requests. Press Ctrl-C to stop.")
		return a.RunDaemon(ctx)
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the local database",
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup PATH",
	Short: "Write a copy of the local database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.BackupDatabase(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Database copied to %s\n", path)
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local database schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.SchemaStatus()
		if err != nil {
			return err
		}
		fmt.Printf("Schema version: %d (latest %d)\n", st.Current, st.Latest)
		if err := st.Err(); err != nil {
			fmt.Printf("Problem: %v\n", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("no-sync", false, "Do not run the startup sync")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// note subcommands
	noteCmd.AddCommand(noteNewCmd)
	noteCmd.AddCommand(noteImportCmd)
	noteCmd.AddCommand(noteListCmd)
	noteCmd.AddCommand(noteShowCmd)
	noteCmd.AddCommand(noteEditCmd)
	noteCmd.AddCommand(noteColorCmd)
	noteCmd.AddCommand(noteDeleteCmd)
	noteCmd.AddCommand(noteSaveCmd)
	noteSaveCmd.Flags().String("title", "", "Title to store instead of the derived one")
	noteSaveCmd.Flags().String("color", "", "Color to store (default keeps the current color)")
	noteCmd.AddCommand(noteMoveCmd)

	// sync subcommands
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncHistoryCmd)
	syncHistoryCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	syncCmd.AddCommand(syncEnableCmd)
	syncCmd.AddCommand(syncDisableCmd)
	syncCmd.AddCommand(syncExportCmd)

	dbCmd.AddCommand(dbBackupCmd)
	dbCmd.AddCommand(dbStatusCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(dbCmd)
}
