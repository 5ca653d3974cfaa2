package services

import (
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"newhome-tracker/models"
	"newhome-tracker/utils"
)

var (
	// moneyRegexp captures the first digit run, optionally preceded by "$".
	moneyRegexp = regexp.MustCompile(`\$?\s*(\d[\d,]*)`)
	// intRegexp captures the first comma-tolerant integer.
	intRegexp = regexp.MustCompile(`\d[\d,]*`)
	// countRegexp captures a count token such as "3", "3.5" or "3 - 4".
	countRegexp = regexp.MustCompile(`\d+(?:\.\d+)?(?:\s*[-–—]\s*\d+(?:\.\d+)?)?`)

	textPolicy = bluemonday.StrictPolicy()
)

// ParsePrice extracts whole dollars from strings like "$425,990",
// "Starting at $389,900" or the thousands shorthand "$363s".
// It reports false when no positive amount is present.
func ParsePrice(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	m := moneyRegexp.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if strings.HasSuffix(strings.ToLower(s), "s") && v < 1000 {
		v *= 1000
	}
	return v, true
}

// ParseSqft extracts the first integer area. For ranges like "2,431 – 2,778"
// the lower bound wins.
func ParseSqft(raw string) (int64, bool) {
	m := intRegexp.FindString(raw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.ReplaceAll(m, ",", ""), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// FirstNumberToken returns the first numeric token of a beds, baths or stories
// string, keeping ranges and halves intact: "3 - 4 Beds" -> "3-4", "2.5 Baths" -> "2.5".
func FirstNumberToken(raw string) string {
	m := countRegexp.FindString(raw)
	if m == "" {
		return ""
	}
	m = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r == '–' || r == '—':
			return '-'
		}
		return r
	}, m)
	return m
}

// PricePerSqft returns round(price/sqft, 2), or nil when either side is missing.
func PricePerSqft(price, sqft *int64) *float64 {
	if price == nil || sqft == nil || *sqft <= 0 {
		return nil
	}
	v := math.Round(float64(*price)/float64(*sqft)*100) / 100
	return &v
}

// CleanText strips markup and collapses whitespace.
func CleanText(s string) string {
	s = html.UnescapeString(textPolicy.Sanitize(s))
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Normalize tidies the text fields of r and derives price_per_sqft. A move-in
// home with an address is named by its street line, since several homes in a
// community can share one floor plan.
func Normalize(r *models.Record) {
	r.PlanName = CleanText(r.PlanName)
	r.Company = CleanText(r.Company)
	r.Community = CleanText(r.Community)
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	r.Address = CleanText(r.Address)
	r.Beds = FirstNumberToken(r.Beds)
	r.Baths = FirstNumberToken(r.Baths)
	r.Stories = FirstNumberToken(r.Stories)
	r.DesignNumber = strings.TrimSpace(r.DesignNumber)
	r.Status = CleanText(r.Status)
	r.PricePerSqft = PricePerSqft(r.Price, r.Sqft)
	if r.Type == models.TypeNow && r.Address != "" {
		r.PlanName = StreetLine(r.Address)
	}
}

// StreetLine returns the part of a postal address before the first comma.
func StreetLine(address string) string {
	street, _, _ := strings.Cut(address, ",")
	return strings.TrimSpace(street)
}

// Finalize normalizes every record, drops records left without a name and
// removes in-batch duplicates. Adapters pass their raw batch through it before
// returning; source names the extractor in the log line.
func Finalize(logger *utils.Logger, source string, records []models.Record) []models.Record {
	kept := records[:0]
	dropped := 0
	for i := range records {
		r := records[i]
		Normalize(&r)
		if r.PlanName == "" {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	if dropped > 0 && logger != nil {
		logger.Warn("[%s] Skipped %d of %d records with no plan name or address; page layout may have changed",
			source, dropped, len(records))
	}
	return Deduplicate(kept)
}

// Deduplicate keeps the first occurrence of each home within one harvest:
// move-in homes are keyed by address, plans by plan name.
func Deduplicate(records []models.Record) []models.Record {
	seen := utils.NewKeySet()
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if seen.Add(dedupKey(&r)) {
			out = append(out, r)
		}
	}
	return out
}

func dedupKey(r *models.Record) string {
	key := r.PlanName
	if r.Type == models.TypeNow && r.Address != "" {
		key = r.Address
	}
	return r.Type + "|" + strings.ToLower(strings.Join(strings.Fields(key), " "))
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// PriceFrom parses raw with ParsePrice and returns nil when absent.
func PriceFrom(raw string) *int64 {
	if v, ok := ParsePrice(raw); ok {
		return &v
	}
	return nil
}

// SqftFrom parses raw with ParseSqft and returns nil when absent.
func SqftFrom(raw string) *int64 {
	if v, ok := ParseSqft(raw); ok {
		return &v
	}
	return nil
}
