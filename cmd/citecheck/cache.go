// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citecheck/internal/cache"
	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/pkg/types"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the lookup cache",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the cached entry for a key",
	Long: `Get prints the entry stored under a cache key as JSON: the selected
record, its merged view and any source conflicts. Keys take the
forms doi:<doi>, arxiv:<id>, and work:<title>|<surname>|<year>; use "cache key"
to compute the keys of a citation.`,
	Args: cobra.ExactArgs(1),
	RunE: runCacheGet,
}

var cacheKeyCmd = &cobra.Command{
	Use:   "key",
	Short: "Print the cache keys for a citation",
	RunE:  runCacheKey,
}

func init() {
	cacheGetCmd.Flags().String("cache", "", "cache backend: memory, sqlite, postgres")
	cacheGetCmd.Flags().String("cache-path", "", "SQLite cache file")

	cacheKeyCmd.Flags().String("title", "", "cited title")
	cacheKeyCmd.Flags().String("author", "", "first author")
	cacheKeyCmd.Flags().Int("year", 0, "cited year")
	cacheKeyCmd.Flags().String("doi", "", "cited DOI")
	cacheKeyCmd.Flags().String("arxiv", "", "cited arXiv id")

	cacheCmd.AddCommand(cacheGetCmd, cacheKeyCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if b, _ := cmd.Flags().GetString("cache"); b != "" {
		cfg.Cache.Backend = types.CacheBackend(b)
	}
	if p, _ := cmd.Flags().GetString("cache-path"); p != "" {
		cfg.Cache.Path = p
		if !cmd.Flags().Changed("cache") {
			cfg.Cache.Backend = types.CacheSQLite
		}
	}

	c, err := cache.Open(cmd.Context(), cfg.Cache)
	if err != nil {
		return err
	}
	defer c.Close()

	entry, ok, err := c.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no cached record for %q", args[0])
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entry)
}

func runCacheKey(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("title")
	author, _ := cmd.Flags().GetString("author")
	year, _ := cmd.Flags().GetInt("year")
	doi, _ := cmd.Flags().GetString("doi")
	arxiv, _ := cmd.Flags().GetString("arxiv")

	c := types.Citation{Title: title, Year: year, DOI: doi, ArxivID: arxiv}
	if author != "" {
		c.Authors = []types.Author{similarity.SplitDisplayName(author)}
	}
	for _, k := range cache.Keys(c) {
		fmt.Println(k)
	}
	return nil
}
