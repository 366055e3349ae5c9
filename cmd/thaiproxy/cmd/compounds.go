package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// compoundsAPIClient is a thin HTTP client against a running server's
// /api/v1/compounds endpoints (spec §6), used by the compounds CLI
// subcommands so operators can manage the dictionary without restarting
// the server.
type compoundsAPIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type compoundEntryDTO struct {
	Surface        string   `json:"surface"`
	Components     []string `json:"components,omitempty"`
	Category       string   `json:"category"`
	Confidence     float64  `json:"confidence"`
	OriginLanguage string   `json:"origin_language,omitempty"`
}

type compoundsListResponse struct {
	Entries []compoundEntryDTO `json:"entries"`
	Total   int                `json:"total"`
}

func (c *compoundsAPIClient) do(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, strings.TrimRight(c.baseURL, "/")+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return c.client.Do(req)
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
}

// newCompoundsCmd creates the compounds command group: CRUD against a
// running instance's dictionary (spec §6 /api/v1/compounds).
func newCompoundsCmd() *cobra.Command {
	var serverURL, apiKey string

	cmd := &cobra.Command{
		Use:   "compounds",
		Short: "Manage compound dictionary entries on a running server",
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "base URL of a running thaiproxy server")
	cmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "X-API-Key to send, if the server requires auth")

	client := func() *compoundsAPIClient {
		return &compoundsAPIClient{baseURL: serverURL, apiKey: apiKey, client: &http.Client{Timeout: 10 * time.Second}}
	}

	cmd.AddCommand(newCompoundsListCmd(client))
	cmd.AddCommand(newCompoundsAddCmd(client))
	cmd.AddCommand(newCompoundsUpdateCmd(client))
	cmd.AddCommand(newCompoundsRemoveCmd(client))

	return cmd
}

func newCompoundsListCmd(client func() *compoundsAPIClient) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List compound dictionary entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/compounds"
			if category != "" {
				path += "?category=" + category
			}
			resp, err := client().do(http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if err := checkResponse(resp); err != nil {
				return err
			}
			var out compoundsListResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	return cmd
}

func newCompoundsAddCmd(client func() *compoundsAPIClient) *cobra.Command {
	var components []string
	var category, originLanguage string
	var confidence float64

	cmd := &cobra.Command{
		Use:   "add <surface>",
		Short: "Add a new compound dictionary entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := compoundEntryDTO{
				Surface:        args[0],
				Components:     components,
				Category:       category,
				Confidence:     confidence,
				OriginLanguage: originLanguage,
			}
			resp, err := client().do(http.MethodPost, "/api/v1/compounds", entry)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if err := checkResponse(resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&components, "components", nil, "component tokens, comma-separated")
	cmd.Flags().StringVar(&category, "category", "", "entry category")
	cmd.Flags().StringVar(&originLanguage, "origin-language", "", "origin language tag")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "split confidence (0-1)")
	return cmd
}

func newCompoundsUpdateCmd(client func() *compoundsAPIClient) *cobra.Command {
	var components []string
	var category, originLanguage string
	var confidence float64

	cmd := &cobra.Command{
		Use:   "update <surface>",
		Short: "Update an existing compound dictionary entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := compoundEntryDTO{
				Surface:        args[0],
				Components:     components,
				Category:       category,
				Confidence:     confidence,
				OriginLanguage: originLanguage,
			}
			resp, err := client().do(http.MethodPut, "/api/v1/compounds/"+args[0], entry)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if err := checkResponse(resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&components, "components", nil, "component tokens, comma-separated")
	cmd.Flags().StringVar(&category, "category", "", "entry category")
	cmd.Flags().StringVar(&originLanguage, "origin-language", "", "origin language tag")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "split confidence (0-1)")
	return cmd
}

func newCompoundsRemoveCmd(client func() *compoundsAPIClient) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <surface>",
		Short: "Remove a compound dictionary entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().do(http.MethodDelete, "/api/v1/compounds/"+args[0], nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if err := checkResponse(resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}
