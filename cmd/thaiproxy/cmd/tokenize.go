package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thaiproxy/searchproxy/internal/config"
	"github.com/thaiproxy/searchproxy/internal/dictionary"
	"github.com/thaiproxy/searchproxy/internal/segmenter"
	"github.com/thaiproxy/searchproxy/internal/tokenizer"
)

// newTokenizeCmd creates the one-shot tokenize command: builds the same
// pipeline serve uses (dictionary + segmenter chain), tokenizes a single
// piece of text, and prints the result as JSON.
func newTokenizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokenize [text]",
		Short: "Tokenize a single query and print the result as JSON",
		Long: `tokenize runs one query through the compound-aware tokenizer (spec §4.D)
and prints the resulting tokens, spans, and which segmenter variant
produced them. Reads the query from its argument, or from stdin if no
argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readQuery(cmd, args)
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			dict := dictionary.New(cfg.Dictionary.Path)
			if err := dict.Load(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: dictionary load failed, tokenizing with an empty dictionary: %v\n", err)
			}

			segments := segmenter.NewRegistry(cfg.Segmenter.Primary, cfg.Segmenter.Fallbacks,
				time.Duration(cfg.Segmenter.TimeoutMS)*time.Millisecond)
			tok := tokenizer.New(dict, segments)

			result, err := tok.Tokenize(cmd.Context(), text)
			if err != nil {
				return fmt.Errorf("tokenize: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	return cmd
}

func readQuery(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
