// Command webpeel is the CLI and server entry point: peel a URL, run
// searches, batches and crawls, serve the HTTP API, or speak MCP.
package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/models"
)

// Exit codes per the CLI contract.
const (
	exitOK           = 0
	exitFailure      = 1
	exitValidation   = 2
	exitFeatureGated = 3
	exitQuota        = 4
)

// peelFlags mirror the PeelRequest fields.
type peelFlags struct {
	render     bool
	stealth    bool
	waitMs     int
	timeoutMs  int
	selector   string
	exclude    []string
	screenshot string
	fullPage   bool
	format     string
	headers    []string
	cookies    []string
	question   string
	maxTokens  int
	budget     int
	noCache    bool
	silent     bool
	asJSON     bool
}

func (f *peelFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.BoolVar(&f.render, "render", false, "force browser rendering")
	fl.BoolVar(&f.stealth, "stealth", false, "force the stealth browser")
	fl.IntVar(&f.waitMs, "wait", 0, "extra settle delay after load (ms)")
	fl.IntVar(&f.timeoutMs, "timeout", 0, "fetch timeout (ms)")
	fl.StringVar(&f.selector, "selector", "", "CSS selector to reduce the page to")
	fl.StringArrayVar(&f.exclude, "exclude", nil, "CSS selector to remove (repeatable)")
	fl.StringVar(&f.screenshot, "screenshot", "", "capture a screenshot to this path")
	fl.Lookup("screenshot").NoOptDefVal = "screenshot.png"
	fl.BoolVar(&f.fullPage, "full-page", false, "screenshot the full page")
	fl.StringVar(&f.format, "format", "markdown", "output format: markdown|text|html|json")
	fl.StringArrayVar(&f.headers, "header", nil, "extra header as 'Key: Value' (repeatable)")
	fl.StringArrayVar(&f.cookies, "cookie", nil, "cookie as 'name=value' (repeatable)")
	fl.StringVar(&f.question, "question", "", "filter content by relevance to this question")
	fl.IntVar(&f.maxTokens, "max-tokens", 0, "hard token cap on output")
	fl.IntVar(&f.budget, "budget", 0, "smart-distill to roughly this many tokens")
	fl.BoolVar(&f.noCache, "no-cache", false, "bypass the result cache")
	fl.BoolVar(&f.silent, "silent", false, "suppress log output")
	fl.BoolVar(&f.asJSON, "json", false, "emit the full PeelResult as JSON")
}

// toRequest converts flags to a PeelRequest. "json" is a CLI-level
// presentation of the markdown result, not a pipeline format.
func (f *peelFlags) toRequest(url string) (*models.PeelRequest, error) {
	req := &models.PeelRequest{
		URL:                url,
		Render:             f.render,
		Stealth:            f.stealth,
		WaitMs:             f.waitMs,
		TimeoutMs:          f.timeoutMs,
		Selector:           f.selector,
		Exclude:            f.exclude,
		Screenshot:         f.screenshot != "",
		ScreenshotFullPage: f.fullPage,
		Question:           f.question,
		MaxTokens:          f.maxTokens,
		Budget:             f.budget,
		NoCache:            f.noCache,
	}
	if f.format != "json" {
		req.Format = f.format
	}
	if len(f.headers) > 0 {
		req.Headers = make(map[string]string, len(f.headers))
		for _, h := range f.headers {
			key, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(key) == "" {
				return nil, models.NewPeelError(models.ErrCodeValidation,
					fmt.Sprintf("header %q must be 'Key: Value'", h), nil)
			}
			req.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	for _, ck := range f.cookies {
		name, value, ok := strings.Cut(ck, "=")
		if !ok || name == "" {
			return nil, models.NewPeelError(models.ErrCodeValidation,
				fmt.Sprintf("cookie %q must be 'name=value'", ck), nil)
		}
		req.Cookies = append(req.Cookies, models.Cookie{Name: name, Value: value})
	}
	return req, nil
}

// emit prints a result per the output flags and writes the screenshot
// when one was requested.
func (f *peelFlags) emit(res *models.PeelResult) error {
	if f.screenshot != "" && res.Screenshot != "" {
		raw, err := base64.StdEncoding.DecodeString(res.Screenshot)
		if err != nil {
			return fmt.Errorf("decode screenshot: %w", err)
		}
		if err := os.WriteFile(f.screenshot, raw, 0o644); err != nil {
			return fmt.Errorf("write screenshot: %w", err)
		}
	}
	if f.asJSON || f.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Println(res.Content)
	return nil
}

func newRootCmd() *cobra.Command {
	flags := &peelFlags{}

	root := &cobra.Command{
		Use:           "webpeel <url>",
		Short:         "Turn any URL into clean, LLM-ready content",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runPeel(cmd, args[0], flags)
		},
	}
	flags.register(root)

	root.AddCommand(
		newSearchCmd(),
		newBatchCmd(),
		newCrawlCmd(),
		newServeCmd(),
		newMCPCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newUsageCmd(),
	)
	return root
}

func runPeel(cmd *cobra.Command, url string, flags *peelFlags) error {
	setupCLILogging(flags.silent)

	req, err := flags.toRequest(url)
	if err != nil {
		return err
	}

	cfg := config.Load()
	needsBrowser := flags.render || flags.stealth || flags.screenshot != ""
	st, err := buildStack(cfg, needsBrowser)
	if err != nil {
		return err
	}
	defer st.close()

	res, err := st.pipeline.Peel(cmd.Context(), req)
	if err != nil {
		return err
	}
	return flags.emit(res)
}

func setupCLILogging(silent bool) {
	cfg := config.Load().Log
	if silent {
		cfg.Level = "error"
	}
	initLogger(cfg, true)
}

// exitCodeFor maps errors to the CLI exit-code contract.
func exitCodeFor(err error) int {
	var pe *models.PeelError
	if errors.As(err, &pe) {
		switch pe.Code {
		case models.ErrCodeValidation:
			return exitValidation
		case models.ErrCodeFeatureGated:
			return exitFeatureGated
		case models.ErrCodeQuota:
			return exitQuota
		}
	}
	return exitFailure
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeFor(err))
	}
}
