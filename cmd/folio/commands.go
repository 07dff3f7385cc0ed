package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/folio/internal/api"
	"github.com/kalambet/folio/internal/config"
	"github.com/kalambet/folio/internal/storage"
)

type sessionSummary struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	Persona    string    `json:"persona"`
	Confidence float64   `json:"confidence"`
	Mood       string    `json:"mood"`
}

type classifyResponse struct {
	Persona    string  `json:"persona"`
	Confidence float64 `json:"confidence"`
	Mood       string  `json:"mood"`
	Source     string  `json:"source"`
}

type statsResponse struct {
	Sessions     int            `json:"sessions"`
	Unclassified int            `json:"unclassified"`
	Personas     map[string]int `json:"personas"`
	Jobs         map[string]int `json:"jobs"`
}

type centroidsResponse struct {
	Dimensions []string       `json:"dimensions"`
	Centroids  map[string]any `json:"centroids"`
}

func sessionPath(id string, suffix string) string {
	return "/admin/sessions/" + url.PathEscape(id) + suffix
}

// --- classify ---

var classifyCmd = &cobra.Command{
	Use:   "classify [session-id...]",
	Short: "Reclassify sessions, bypassing the cache",
	Long: `Reclassify sessions, bypassing the cache.

Examples:
  folio classify 0b6c2b8e-3f0c-4a8e-9a34-3c1d1f8f2a10
  folio classify --all --concurrency 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		limit, _ := cmd.Flags().GetInt("limit")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		if !all && len(args) == 0 {
			return errors.New("pass session IDs or --all")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if all {
			sessions, err := listSessions(cmd.Context(), client, limit)
			if err != nil {
				return err
			}
			args = args[:0]
			for _, s := range sessions {
				args = append(args, s.ID)
			}
		}
		return classifySessions(cmd.Context(), client, args, concurrency, os.Stdout)
	},
}

func init() {
	classifyCmd.Flags().Bool("all", false, "reclassify the most recent sessions")
	classifyCmd.Flags().Int("limit", 500, "number of sessions to reclassify with --all")
	classifyCmd.Flags().Int("concurrency", 4, "parallel requests")
}

// classifySessions reclassifies ids in parallel and prints the results in
// input order. The first failure cancels the remaining requests.
func classifySessions(ctx context.Context, c *apiClient, ids []string, concurrency int, w io.Writer) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]classifyResponse, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			resp, err := c.post(gctx, sessionPath(id, "/classify"), nil)
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &results[i]); err != nil {
				return fmt.Errorf("session %s: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tPERSONA\tCONFIDENCE\tMOOD\tSOURCE")
	for i, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", ids[i], colorize(personaColor(r.Persona), r.Persona), r.Confidence, r.Mood, r.Source)
	}
	return tw.Flush()
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage visitor sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		sessions, err := listSessions(cmd.Context(), client, limit)
		if err != nil {
			return err
		}
		return printSessions(os.Stdout, sessions)
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session with its aggregated behavior",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), sessionPath(args[0], ""))
		if err != nil {
			return err
		}
		var detail any
		if err := decodeJSON(resp, &detail); err != nil {
			return err
		}
		return printJSON(os.Stdout, detail)
	},
}

var sessionsResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Clear a session's cached persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), sessionPath(args[0], "/persona"))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Cleared persona for %s", args[0])
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session and all its events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), sessionPath(args[0], ""))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Deleted session %s", args[0])
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().Int("limit", 20, "number of sessions to list")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsResetCmd, sessionsDeleteCmd)
}

func listSessions(ctx context.Context, c *apiClient, limit int) ([]sessionSummary, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/admin/sessions?limit=%d", limit))
	if err != nil {
		return nil, err
	}
	var sessions []sessionSummary
	if err := decodeJSON(resp, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func printSessions(w io.Writer, sessions []sessionSummary) error {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "no sessions")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tCREATED\tPERSONA\tCONFIDENCE\tMOOD")
	for _, s := range sessions {
		p := s.Persona
		if p == "" {
			p = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), colorize(personaColor(p), p), s.Confidence, s.Mood)
	}
	return tw.Flush()
}

// --- centroids / stats ---

var centroidsCmd = &cobra.Command{
	Use:   "centroids",
	Short: "Print the persona reference vectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/admin/centroids")
		if err != nil {
			return err
		}
		var out centroidsResponse
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		return printJSON(os.Stdout, out)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the persona distribution and job queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/admin/stats")
		if err != nil {
			return err
		}
		var st statsResponse
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}
		printStats(os.Stdout, st)
		return nil
	},
}

func printStats(w io.Writer, st statsResponse) {
	personas := make(map[string]int, len(st.Personas)+1)
	for k, n := range st.Personas {
		personas[k] = n
	}
	if st.Unclassified > 0 {
		personas["unclassified"] = st.Unclassified
	}

	fmt.Fprintf(w, "sessions: %d\n", st.Sessions)
	printCounts(w, "personas", personas)
	printCounts(w, "jobs", st.Jobs)
}

// printCounts prints counts sorted by key.
func printCounts(w io.Writer, title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-14s %d\n", k, counts[k])
	}
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	Long: `Serve the MCP tools over stdio against the local database.

Logs go to stderr; stdout carries the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		orch, err := newOrchestrator(cfg, store, newLLMClient(cfg))
		if err != nil {
			return err
		}
		s := api.NewMCPServer(api.Deps{Store: store, Classifier: orch}, version)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio server: %w", err)
		}
		return nil
	},
}
