package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	domain "github.com/skireal/ebay-tracker/pkg/types"
)

var (
	itemsKeyword string
	itemsLimit   int
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List tracked items from a running tracker",
	Example: `  # Most recent items
  ebay-tracker items

  # Items for one keyword, as JSON
  ebay-tracker items --keyword "thinkpad x220" --output json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		query := url.Values{}
		if itemsKeyword != "" {
			query.Set("keyword", itemsKeyword)
		}
		if itemsLimit > 0 {
			query.Set("limit", strconv.Itoa(itemsLimit))
		}

		var resp struct {
			Items []domain.Item `json:"items"`
			Count int           `json:"count"`
		}
		if err := apiGet(cmd.Context(), "/api/items", query, &resp); err != nil {
			return err
		}

		if jsonOutput() {
			return outputJSON(resp)
		}

		if resp.Count == 0 {
			fmt.Println("No items found.")
			return nil
		}
		return printItemsTable(resp.Items)
	},
}

func init() {
	itemsCmd.Flags().StringVar(&itemsKeyword, "keyword", "", "filter by search keyword")
	itemsCmd.Flags().IntVar(&itemsLimit, "limit", 0, "number of results")
	rootCmd.AddCommand(itemsCmd)
}
