package cli

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/output"
)

var scrapeOpts struct {
	limit        int
	site         string
	format       string
	out          string
	requirePhone bool
	workers      int
	noCache      bool
	noStore      bool
}

func init() {
	f := scrapeCmd.Flags()
	f.IntVarP(&scrapeOpts.limit, "limit", "n", domain.DefaultLimit, "Maximum number of leads (1-2000).")
	f.StringVarP(&scrapeOpts.site, "site", "s", "", "Directory to scrape: angi or yellow_pages (default angi).")
	f.StringVarP(&scrapeOpts.format, "format", "f", string(output.Table), "Output format: json, csv, table or xlsx.")
	f.StringVarP(&scrapeOpts.out, "out", "o", "", "Write output to this file instead of stdout.")
	f.BoolVar(&scrapeOpts.requirePhone, "require-phone", false, "Keep only leads with a phone number.")
	f.IntVar(&scrapeOpts.workers, "workers", 1, "Locations walked at once in a us_latino sweep.")
	f.BoolVar(&scrapeOpts.noCache, "no-cache", false, "Skip cached results; the fresh result is still cached.")
	f.BoolVar(&scrapeOpts.noStore, "no-store", false, "Do not connect to Redis or MongoDB.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <keyword> <location>",
	Short: "Scrapes leads for a keyword in a location (or us_latino for the batch sweep).",
	Example: `  leadscraper scrape plumber "Houston, TX" --limit 50
  leadscraper scrape electrician us_latino --limit 1000 --workers 4 -f xlsx -o leads.xlsx`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(scrapeOpts.format)
		if err != nil {
			return err
		}
		if format.Binary() && scrapeOpts.out == "" {
			return eris.Errorf("--format %s needs --out", format)
		}

		a := newApp(cfg, scrapeOpts.workers)
		if !scrapeOpts.noStore {
			a.connect(cmd.Context())
		}
		defer a.close()

		res, err := a.run(cmd.Context(), domain.Query{
			Keyword:      args[0],
			Location:     args[1],
			Limit:        scrapeOpts.limit,
			Site:         scrapeOpts.site,
			RequirePhone: scrapeOpts.requirePhone,
			NoCache:      scrapeOpts.noCache,
		})
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if scrapeOpts.out != "" {
			f, err := os.Create(scrapeOpts.out)
			if err != nil {
				return eris.Wrap(err, "scrape: create output")
			}
			defer f.Close()
			w = f
		}
		if err := output.Write(w, format, *res); err != nil {
			return err
		}
		if res.Error != "" {
			return eris.Errorf("scrape failed (status %d): %s", res.Status, res.Error)
		}
		return nil
	},
}
