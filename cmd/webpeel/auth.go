package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/webpeel/webpeel/models"
)

// credentialsPath is where login stores the API key.
func credentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "webpeel", "credentials"), nil
}

func savedKey() string {
	path, err := credentialsPath()
	if err != nil {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func newLoginCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key for the hosted service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				fmt.Fprint(os.Stderr, "API key (wp_...): ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && err != io.EOF {
					return err
				}
				key = strings.TrimSpace(line)
			}
			if !strings.HasPrefix(key, "wp_") {
				return models.NewPeelError(models.ErrCodeValidation, "API keys start with wp_", nil)
			}

			path, err := credentialsPath()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(key+"\n"), 0o600); err != nil {
				return err
			}
			fmt.Println("logged in")
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "API key (prompts when omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := credentialsPath()
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}

func newUsageCmd() *cobra.Command {
	var apiURL string

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show requests consumed in the current quota window",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := savedKey()
			if key == "" {
				return models.NewPeelError(models.ErrCodeAuth, "not logged in; run `webpeel login`", nil)
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, apiURL+"/v1/usage", nil)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+key)

			client := &http.Client{Timeout: 15 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				return models.NewHTTPError(resp.StatusCode, strings.TrimSpace(string(body)))
			}

			var usage struct {
				Identity string `json:"identity"`
				Used     int    `json:"used"`
				Limit    int    `json:"limit"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&usage); err != nil {
				return err
			}
			if usage.Limit > 0 {
				fmt.Printf("%s: %d/%d requests this week\n", usage.Identity, usage.Used, usage.Limit)
			} else {
				fmt.Printf("%s: %d requests this week (no limit)\n", usage.Identity, usage.Used)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", envOr("WEBPEEL_API_URL", "https://api.webpeel.dev"), "API base URL")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
