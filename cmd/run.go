package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/realpulse/bds-harvester/internal/listing"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [seed-url...]",
		Short: "Crawl listing pages and write the daily partition",
		Long: `Crawls the given seed URLs (or the configured defaults) page by page,
opening each new listing's detail page and merging the normalized records
into the current day's partition. Ctrl-C flushes what was collected and
exits cleanly.`,
		RunE: runCrawl,
	}

	fl := cmd.Flags()
	fl.String("location", "", "location text applied through the site search")
	fl.String("price-from", "", "minimum price in VND")
	fl.String("price-to", "", "maximum price in VND")
	fl.String("area-from", "", "minimum area in m2")
	fl.String("area-to", "", "maximum area in m2")
	fl.String("direction", "", "facing direction code")
	fl.String("frontage", "", "frontage bucket code (1-6)")
	fl.String("road", "", "road-width bucket code (1-6)")
	fl.String("rooms", "", "bedroom count")
	fl.String("posted-from", "", "posted-date window start (YYYY-MM-DD)")
	fl.String("posted-to", "", "posted-date window end (YYYY-MM-DD)")
	fl.Int("max-pages", 0, "listing pages per seed, overrides config")
	fl.Int("max-items", 0, "items per page, overrides config")
	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	seeds := args
	if len(seeds) == 0 {
		seeds = rt.cfg.Seeds
	}
	filter := filterFromFlags(cmd, rt.cfg.Filter)

	result, err := rt.orch.Run(cmd.Context(), seeds, &filter)
	if err != nil {
		return err
	}
	rt.logger.Info("crawl finished",
		zap.Int("total_items", result.TotalItems),
		zap.String("partition", result.PartitionPath))
	return nil
}

// filterFromFlags starts from the configured filter and overlays every flag
// the user set explicitly.
func filterFromFlags(cmd *cobra.Command, filter listing.FilterSpec) listing.FilterSpec {
	overrides := map[string]*string{
		"location":    &filter.Location,
		"price-from":  &filter.PriceFrom,
		"price-to":    &filter.PriceTo,
		"area-from":   &filter.AreaFrom,
		"area-to":     &filter.AreaTo,
		"direction":   &filter.Direction,
		"frontage":    &filter.Frontage,
		"road":        &filter.Road,
		"rooms":       &filter.Rooms,
		"posted-from": &filter.PostedFrom,
		"posted-to":   &filter.PostedTo,
	}
	fl := cmd.Flags()
	for name, dst := range overrides {
		if fl.Changed(name) {
			*dst, _ = fl.GetString(name)
		}
	}
	if fl.Changed("max-pages") {
		filter.MaxPages, _ = fl.GetInt("max-pages")
	}
	if fl.Changed("max-items") {
		filter.MaxItemsPerPage, _ = fl.GetInt("max-items")
	}
	return filter
}
