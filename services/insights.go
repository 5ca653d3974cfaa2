package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"newhome-tracker/models"
	"newhome-tracker/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarizes the stored catalog. recent holds the IDs of listings
// whose price changed inside the change window.
func (s *InsightService) Generate(listings []*models.Listing, recent map[int64]bool) *models.CatalogReport {
	report := &models.CatalogReport{
		ByCommunity: make(map[string]int),
		ByCompany:   make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var (
		total     float64
		ppsfTotal float64
		ppsfCount int
	)
	for _, l := range listings {
		switch l.Type {
		case models.TypePlan:
			report.PlanListings++
		case models.TypeNow:
			report.NowListings++
		}
		report.ByCommunity[l.Community]++
		report.ByCompany[l.Company]++
		if recent[l.ID] {
			report.RecentlyChanged = append(report.RecentlyChanged, l)
		}
		if l.PricePerSqft != nil {
			ppsfTotal += *l.PricePerSqft
			ppsfCount++
		}

		if l.Price == nil {
			continue
		}
		p := *l.Price
		if report.PricedListings == 0 || p < report.MinPrice {
			report.MinPrice = p
		}
		if report.PricedListings == 0 || p > report.MaxPrice {
			report.MaxPrice = p
			report.MostExpensive = l
		}
		report.PricedListings++
		total += float64(p)
	}

	if report.PricedListings > 0 {
		report.AveragePrice = round2(total / float64(report.PricedListings))
	}
	if ppsfCount > 0 {
		report.AveragePricePerSqft = round2(ppsfTotal / float64(ppsfCount))
	}

	sort.Slice(report.RecentlyChanged, func(i, j int) bool {
		a, b := report.RecentlyChanged[i], report.RecentlyChanged[j]
		if a.Community != b.Community {
			return a.Community < b.Community
		}
		return a.PlanName < b.PlanName
	})

	s.logger.Debug("[insights] %d listings, %d priced, %d recently changed",
		report.TotalListings, report.PricedListings, len(report.RecentlyChanged))
	return report
}

func (s *InsightService) Print(w io.Writer, r *models.CatalogReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🏠 NEW HOME CATALOG\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings   : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  Floor plans      : \033[1m%d\033[0m\n", r.PlanListings)
	fmt.Fprintf(w, "  Move-in homes    : \033[1m%d\033[0m\n", r.NowListings)
	fmt.Fprintf(w, "  With a price     : \033[1m%d\033[0m\n", r.PricedListings)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m$%s\033[0m\n", dollars(int64(math.Round(r.AveragePrice))))
		fmt.Fprintf(w, "  Minimum price : \033[1;32m$%s\033[0m\n", dollars(r.MinPrice))
		fmt.Fprintf(w, "  Maximum price : \033[1;32m$%s\033[0m\n", dollars(r.MaxPrice))
		if r.AveragePricePerSqft > 0 {
			fmt.Fprintf(w, "  Average $/sqft: \033[1;32m$%.2f\033[0m\n", r.AveragePricePerSqft)
		}
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s (%s)\n", truncate(r.MostExpensive.PlanName, 40), r.MostExpensive.Type)
		fmt.Fprintf(w, "  Builder   : %s\n", r.MostExpensive.Company)
		fmt.Fprintf(w, "  Community : %s\n", r.MostExpensive.Community)
		fmt.Fprintf(w, "  Price     : \033[1;31m$%s\033[0m\n", dollars(*r.MostExpensive.Price))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Recent Price Changes\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.RecentlyChanged) == 0 {
		fmt.Fprintf(w, "  No price changes in the window\n")
	} else {
		for i, l := range r.RecentlyChanged {
			price := "n/a"
			if l.Price != nil {
				price = "$" + dollars(*l.Price)
			}
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-34s %-14s \033[1;32m%s\033[0m\n",
				i+1, truncate(l.PlanName+", "+l.Community, 32), truncate(l.Company, 14), price)
		}
	}
	fmt.Fprintln(w)

	printCounts(w, "Listings by Community", r.ByCommunity, thin)
	printCounts(w, "Listings by Builder", r.ByCompany, thin)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(w io.Writer, title string, counts map[string]int, thin string) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(counts) == 0 {
		fmt.Fprintf(w, "  No data\n\n")
		return
	}

	type nameCount struct {
		name  string
		count int
	}
	var rows []nameCount
	for name, cnt := range counts {
		rows = append(rows, nameCount{name, cnt})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].name < rows[j].name
	})
	for _, nc := range rows {
		bar := strings.Repeat("█", min(nc.count, 40))
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(nc.name, 28), bar, nc.count)
	}
	fmt.Fprintln(w)
}

// dollars formats v with thousands separators: 425000 -> "425,000".
func dollars(v int64) string {
	s := fmt.Sprintf("%d", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
