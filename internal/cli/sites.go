package cli

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lucasfdcampos/lead-scraper/internal/dedup"
	"github.com/lucasfdcampos/lead-scraper/internal/site"
)

func init() {
	rootCmd.AddCommand(sitesCmd)
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Prints the directories leadscraper knows how to scrape.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Site", "Label", "Page cap", "Dedup key"})

		for _, name := range site.Names() {
			s, err := site.Lookup(name)
			if err != nil {
				return err
			}
			key := "name"
			if s.KeyMode == dedup.KeyNamePhone {
				key = "name + phone"
			}
			t.AppendRow(table.Row{s.Name, s.Label, strconv.Itoa(s.PageCap), key})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
