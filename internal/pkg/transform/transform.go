// Package transform reduces provider rows into one DailyMetric per date.
package transform

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/TrackFox/app/models"
	"github.com/ManuelReschke/TrackFox/internal/pkg/adplatform"
)

const (
	ratioPlaces = 4
	moneyPlaces = 2
)

var (
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
)

// Meta reports the same conversion under several action types. The first
// alias present in a row wins so a purchase is never counted twice.
var (
	metaPurchaseActions         = []string{"purchase", "omni_purchase", "offsite_conversion.fb_pixel_purchase"}
	metaLeadActions             = []string{"lead", "offsite_conversion.fb_pixel_lead", "onsite_conversion.lead_grouped"}
	metaLandingPageViewActions  = []string{"landing_page_view", "omni_landing_page_view"}
	metaAddToCartActions        = []string{"add_to_cart", "omni_add_to_cart", "offsite_conversion.fb_pixel_add_to_cart"}
	metaInitiateCheckoutActions = []string{"initiate_checkout", "omni_initiated_checkout", "offsite_conversion.fb_pixel_initiate_checkout"}
	metaVideoViewActions        = []string{"video_view"}
)

// totals are the summed counters of one date.
type totals struct {
	spend            decimal.Decimal
	purchases        decimal.Decimal
	purchaseValue    decimal.Decimal
	reach            int64
	impressions      int64
	clicksAll        int64
	linkClicks       int64
	uniqueLinkClicks int64
	leads            int64
	landingPageViews int64
	addToCart        int64
	initiateCheckout int64
	videoViews       int64
	videoP25         int64
	videoP50         int64
	videoP75         int64
	videoP100        int64
}

func (t *totals) add(o totals) {
	t.spend = t.spend.Add(o.spend)
	t.purchases = t.purchases.Add(o.purchases)
	t.purchaseValue = t.purchaseValue.Add(o.purchaseValue)
	t.reach += o.reach
	t.impressions += o.impressions
	t.clicksAll += o.clicksAll
	t.linkClicks += o.linkClicks
	t.uniqueLinkClicks += o.uniqueLinkClicks
	t.leads += o.leads
	t.landingPageViews += o.landingPageViews
	t.addToCart += o.addToCart
	t.initiateCheckout += o.initiateCheckout
	t.videoViews += o.videoViews
	t.videoP25 += o.videoP25
	t.videoP50 += o.videoP50
	t.videoP75 += o.videoP75
	t.videoP100 += o.videoP100
}

// DailyMetrics groups rows by date, sums every counter and derives the ratios
// from the summed totals. Unparsable dates or numbers fail the whole batch.
func DailyMetrics(conn *models.AdAccountConnection, rows []adplatform.RawRow) ([]models.DailyMetric, error) {
	byDate := make(map[time.Time]*totals)

	for i, row := range rows {
		date, err := time.Parse("2006-01-02", strings.TrimSpace(row.RowDate()))
		if err != nil {
			return nil, fmt.Errorf("transform: row %d: invalid date %q: %w", i, row.RowDate(), err)
		}

		var t totals
		switch r := row.(type) {
		case adplatform.GoogleAdsRow:
			t, err = fromGoogle(r)
		case adplatform.MetaInsightRow:
			t, err = fromMeta(r)
		default:
			err = fmt.Errorf("unsupported row type %T", row)
		}
		if err != nil {
			return nil, fmt.Errorf("transform: row %d (%s): %w", i, date.Format("2006-01-02"), err)
		}

		agg, ok := byDate[date]
		if !ok {
			agg = &totals{}
			byDate[date] = agg
		}
		agg.add(t)
	}

	out := make([]models.DailyMetric, 0, len(byDate))
	for date, t := range byDate {
		out = append(out, toMetric(conn, date, t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// DateSpan returns the first and last date of metrics. ok is false when empty.
func DateSpan(metrics []models.DailyMetric) (from, to time.Time, ok bool) {
	for i, m := range metrics {
		if i == 0 || m.Date.Before(from) {
			from = m.Date
		}
		if i == 0 || m.Date.After(to) {
			to = m.Date
		}
	}
	return from, to, len(metrics) > 0
}

func toMetric(conn *models.AdAccountConnection, date time.Time, t *totals) models.DailyMetric {
	spend := t.spend.Round(moneyPlaces)
	impressions := decimal.NewFromInt(t.impressions)
	clicks := decimal.NewFromInt(t.clicksAll)

	return models.DailyMetric{
		WorkspaceID:           conn.WorkspaceID,
		AdAccountConnectionID: conn.ID,
		Date:                  date,
		Platform:              conn.Platform,
		AmountSpent:           spend.InexactFloat64(),
		Reach:                 t.reach,
		Impressions:           t.impressions,
		ClicksAll:             t.clicksAll,
		LinkClicks:            t.linkClicks,
		UniqueLinkClicks:      t.uniqueLinkClicks,
		Purchases:             t.purchases.Round(moneyPlaces).InexactFloat64(),
		PurchaseValue:         t.purchaseValue.Round(moneyPlaces).InexactFloat64(),
		Leads:                 t.leads,
		LandingPageViews:      t.landingPageViews,
		AddToCart:             t.addToCart,
		InitiateCheckout:      t.initiateCheckout,
		VideoViews:            t.videoViews,
		VideoP25:              t.videoP25,
		VideoP50:              t.videoP50,
		VideoP75:              t.videoP75,
		VideoP100:             t.videoP100,
		CTR:                   ratio(clicks.Mul(hundred), impressions),
		CPC:                   ratio(t.spend, clicks),
		CPM:                   ratio(t.spend.Mul(thousand), impressions),
		ROAS:                  ratio(t.purchaseValue, t.spend),
	}
}

// ratio divides and rounds, yielding 0 for a zero denominator.
func ratio(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	return num.Div(den).Round(ratioPlaces).InexactFloat64()
}
