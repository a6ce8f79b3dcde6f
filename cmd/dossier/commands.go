package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dossier/internal/discovery"
	"dossier/internal/profile"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ambient orchestrator until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("dossier serving", zap.String("data", dataDir))
		if err := a.ambient.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		logger.Info("dossier stopped")
		return nil
	},
}

var collectQuery string

var collectCmd = &cobra.Command{
	Use:   "collect [notebook]",
	Short: "Run an immediate collection for one notebook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithTimeout(context.Background(), 6*time.Minute)
		defer cancel()

		result, err := a.supervisor.AssignImmediateCollection(ctx, args[0], collectQuery)
		if err != nil {
			return err
		}

		fmt.Printf("Collected %d items in %s\n", result.ItemsCollected, result.Duration.Round(time.Second))
		printTitles("Approved", result.Approved)
		printTitles("Pending review", result.Pending)
		printTitles("Rejected", result.Rejected)
		printTitles("Filtered", result.Filtered)
		if result.Message != "" {
			fmt.Println(result.Message)
		}
		for _, w := range result.Warnings {
			fmt.Println("warning:", w)
		}
		return nil
	},
}

var briefSince time.Duration

var briefCmd = &cobra.Command{
	Use:   "brief",
	Short: "Generate and render the morning brief",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		brief, err := a.supervisor.GenerateBriefing(ctx, time.Now().Add(-briefSince))
		if err != nil {
			return err
		}

		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			fmt.Println(brief.Narrative)
			return nil
		}
		rendered, err := renderer.Render(brief.Narrative)
		if err != nil {
			fmt.Println(brief.Narrative)
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}

var (
	discoverSubject string
	discoverFocus   []string
)

var discoverCmd = &cobra.Command{
	Use:   "discover [intent]",
	Short: "Discover sources for a research intent",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		result := a.discoverer.Discover(ctx, discovery.Request{
			Intent:     strings.Join(args, " "),
			Subject:    discoverSubject,
			FocusAreas: discoverFocus,
		})

		fmt.Printf("Purpose: %s, topic: %s\n", result.Analysis.NotebookPurpose, result.Analysis.PrimaryTopic)
		if result.Analysis.Ticker != "" {
			fmt.Printf("Ticker: %s\n", result.Analysis.Ticker)
		}
		if result.Analysis.NeedsClarification {
			fmt.Println("Could not identify the entity confidently; please clarify the subject.")
		}
		for _, src := range result.Sources {
			target := src.URL
			if target == "" {
				target = src.Keyword
			}
			fmt.Printf("  [%-12s] %-6s %.2f  %s  %s\n", src.Kind, src.Action, src.Confidence, src.Name, target)
		}
		for _, e := range result.Errors {
			fmt.Println("note:", e)
		}
		return nil
	},
}

var (
	notebookSubject string
	notebookIntent  string
	notebookFocus   []string
)

var notebookCmd = &cobra.Command{
	Use:   "notebook",
	Short: "Manage notebooks",
}

var notebookCreateCmd = &cobra.Command{
	Use:   "create [id]",
	Short: "Create a notebook and run its first sweep",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		id := args[0]
		p := profile.Default(id)
		p.Subject = notebookSubject
		p.Intent = notebookIntent
		p.FocusAreas = notebookFocus
		if err := a.profiles.Save(p); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		g, err := a.registry.Create(ctx, id)
		if err != nil {
			return err
		}
		result, err := g.RunFirstSweep(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Notebook %s created. First sweep: %d found, %d approved, %d queued (%s)\n",
			id, result.ItemsFound, result.ItemsApproved, result.ItemsQueued, result.Duration.Round(time.Second))
		return nil
	},
}

var notebookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notebooks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		ids, err := a.profiles.List()
		if err != nil {
			return err
		}
		for _, id := range ids {
			p, err := a.profiles.Load(id)
			if err != nil {
				fmt.Printf("  %s (unreadable profile: %v)\n", id, err)
				continue
			}
			fmt.Printf("  %-20s %-30s mode=%s approval=%s\n", id, p.Subject, p.CollectionMode, p.ApprovalMode)
		}
		return nil
	},
}

var notebookDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a notebook and its core-owned state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		a.registry.Drop(args[0])
		if err := a.profiles.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Notebook %s deleted\n", args[0])
		return nil
	},
}

func printTitles(label string, titles []string) {
	if len(titles) == 0 {
		return
	}
	fmt.Printf("%s (%d):\n", label, len(titles))
	for _, t := range titles {
		fmt.Println("  -", t)
	}
}

func init() {
	collectCmd.Flags().StringVarP(&collectQuery, "query", "q", "", "specific query for this run")
	briefCmd.Flags().DurationVar(&briefSince, "since", 24*time.Hour, "window the brief covers")
	discoverCmd.Flags().StringVar(&discoverSubject, "subject", "", "explicit subject override")
	discoverCmd.Flags().StringSliceVar(&discoverFocus, "focus", nil, "focus areas")
	notebookCreateCmd.Flags().StringVar(&notebookSubject, "subject", "", "research subject")
	notebookCreateCmd.Flags().StringVar(&notebookIntent, "intent", "", "research intent")
	notebookCreateCmd.Flags().StringSliceVar(&notebookFocus, "focus", nil, "focus areas")
	notebookCmd.AddCommand(notebookCreateCmd)
	notebookCmd.AddCommand(notebookListCmd)
	notebookCmd.AddCommand(notebookDeleteCmd)
}
