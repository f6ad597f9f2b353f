package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/models"
)

func newSearchCmd() *cobra.Command {
	var count int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the web and print title, URL and snippet per hit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupCLILogging(false)
			st, err := buildStack(config.Load(), false)
			if err != nil {
				return err
			}
			defer st.close()

			hits, err := st.search.Search(cmd.Context(), &models.SearchRequest{
				Query: strings.Join(args, " "),
				Count: count,
			})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(hits)
			}
			for i, hit := range hits {
				fmt.Printf("%d. %s\n   %s\n", i+1, hit.Title, hit.URL)
				if hit.Snippet != "" {
					fmt.Printf("   %s\n", hit.Snippet)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit hits as JSON")
	return cmd
}

func newBatchCmd() *cobra.Command {
	flags := &peelFlags{}

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Peel every URL listed in a file (one per line)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupCLILogging(flags.silent)

			urls, err := readURLFile(args[0])
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return models.NewPeelError(models.ErrCodeValidation, "no urls in "+args[0], nil)
			}

			cfg := config.Load()
			st, err := buildStack(cfg, flags.render || flags.stealth)
			if err != nil {
				return err
			}
			defer st.close()

			job, err := st.jobs.StartBatch(&models.BatchRequest{URLs: urls})
			if err != nil {
				return err
			}
			snap, err := waitForJob(cmd, st, job.ID)
			if err != nil {
				return err
			}
			return emitJobResults(snap, flags.asJSON)
		},
	}
	flags.register(cmd)
	return cmd
}

func newCrawlCmd() *cobra.Command {
	var (
		maxDepth int
		maxPages int
		scope    string
		exclude  []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site breadth-first and peel every page in scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupCLILogging(false)
			st, err := buildStack(config.Load(), false)
			if err != nil {
				return err
			}
			defer st.close()

			job, err := st.jobs.StartCrawl(&models.CrawlRequest{
				URL:             args[0],
				MaxDepth:        maxDepth,
				MaxPages:        maxPages,
				Scope:           scope,
				ExcludePatterns: exclude,
			})
			if err != nil {
				return err
			}
			snap, err := waitForJob(cmd, st, job.ID)
			if err != nil {
				return err
			}
			return emitJobResults(snap, asJSON)
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 3, "link-following depth")
	cmd.Flags().IntVar(&maxPages, "max-pages", 100, "page budget")
	cmd.Flags().StringVar(&scope, "scope", "subdomain", "crawl scope: page|domain|subdomain")
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "path substring to skip (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit results as JSON")
	return cmd
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, sc.Err()
}

func waitForJob(cmd *cobra.Command, st *stack, id string) (*models.JobStatusResponse, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-cmd.Context().Done():
			return nil, cmd.Context().Err()
		case <-ticker.C:
			snap, ok := st.jobs.Status(id)
			if !ok {
				return nil, models.NewPeelError(models.ErrCodeNotFound, "job vanished: "+id, nil)
			}
			if snap.Status != models.JobStatusProcessing {
				return snap, nil
			}
			fmt.Fprintf(os.Stderr, "\r%d/%d pages", snap.Completed, snap.Total)
		}
	}
}

func emitJobResults(snap *models.JobStatusResponse, asJSON bool) error {
	fmt.Fprintf(os.Stderr, "\r%s: %d/%d pages\n", snap.Status, snap.Completed, snap.Total)
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Results)
	}
	for _, res := range snap.Results {
		fmt.Printf("--- %s ---\n%s\n\n", res.URL, res.Content)
	}
	if snap.Status == models.JobStatusFailed {
		return models.NewPeelError(models.ErrCodeInternal, "all pages failed", nil)
	}
	return nil
}
