package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veil-sh/veil/internal/config"
	"github.com/veil-sh/veil/internal/pii"
	"github.com/veil-sh/veil/internal/session"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage session redaction caches",
	Long:  "Session caches store hash signatures of previously masked values so repeats get the same mask. Export and import move a cache between sessions as a JSON file; raw values are never stored.",
}

// cacheFile is the JSON envelope for exported caches.
type cacheFile struct {
	Records []session.CachedRedaction `json:"records"`
}

var (
	flagCacheMax int
	flagMerge    bool
)

func loadCacheFile(path string) (*session.Cache, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, err
	}
	maxEntries := cfg.Cache.MaxEntries
	if flagCacheMax > 0 {
		maxEntries = flagCacheMax
	}
	c := session.NewCache(maxEntries)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing cache file: %w", err)
	}
	if err := c.Import(file.Records, false); err != nil {
		return nil, fmt.Errorf("loading cache file: %w", err)
	}
	return c, nil
}

func saveCacheFile(path string, c *session.Cache) error {
	data, err := json.MarshalIndent(cacheFile{Records: c.Export()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

var cacheAddCmd = &cobra.Command{
	Use:   "add <file> <value> <masked> <type>",
	Short: "Record a masking in a cache file",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		t := pii.Type(args[3])
		if !t.Valid() {
			return fmt.Errorf("unknown PII type: %s", args[3])
		}
		c, err := loadCacheFile(args[0])
		if err != nil {
			return err
		}
		c.Add(args[1], args[2], t)
		if err := saveCacheFile(args[0], c); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Cached %d entries in %s\n", c.Len(), args[0])
		return nil
	},
}

var cacheFindCmd = &cobra.Command{
	Use:   "find <file> [textfile]",
	Short: "Find cached values in a document",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCacheFile(args[0])
		if err != nil {
			return err
		}
		text, err := readInput(args[1:])
		if err != nil {
			return err
		}
		matches := c.FindMatches(text)
		data, err := json.MarshalIndent(matches, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		if err := saveCacheFile(args[0], c); err != nil {
			return err
		}
		if flagFailOnFindings && len(matches) > 0 {
			exitCode = ExitFindings
		}
		return nil
	},
}

var cacheImportCmd = &cobra.Command{
	Use:   "import <dst> <src>",
	Short: "Import records from one cache file into another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCacheFile(args[0])
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading import file: %w", err)
		}
		var file cacheFile
		if err := json.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parsing import file: %w", err)
		}
		if err := c.Import(file.Records, flagMerge); err != nil {
			return fmt.Errorf("importing records: %w", err)
		}
		if err := saveCacheFile(args[0], c); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Imported %d records, %d entries total\n", len(file.Records), c.Len())
		return nil
	},
}

var cacheExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Print a cache file's records as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCacheFile(args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(cacheFile{Records: c.Export()}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Show cache statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCacheFile(args[0])
		if err != nil {
			return err
		}
		byType := make(map[pii.Type]int)
		for _, rec := range c.Export() {
			byType[rec.Type]++
		}
		stats := struct {
			Entries int              `json:"entries"`
			ByType  map[pii.Type]int `json:"byType"`
		}{Entries: c.Len(), ByType: byType}

		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <file>",
	Short: "Remove all entries from a cache file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := session.NewCache(0)
		if err := saveCacheFile(args[0], c); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Cache cleared.")
		return nil
	},
}

func init() {
	cacheFindCmd.Flags().BoolVar(&flagFailOnFindings, "fail-on-findings", false, "Exit non-zero when matches are found")
	cacheImportCmd.Flags().BoolVar(&flagMerge, "merge", false, "Fold imported records into existing entries instead of replacing")
	for _, cmd := range []*cobra.Command{cacheAddCmd, cacheFindCmd, cacheImportCmd} {
		cmd.Flags().IntVar(&flagCacheMax, "max-entries", 0, "Cache entry bound (default from config)")
	}
	cacheCmd.AddCommand(cacheAddCmd)
	cacheCmd.AddCommand(cacheFindCmd)
	cacheCmd.AddCommand(cacheImportCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
