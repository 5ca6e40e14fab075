package transform

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/TrackFox/internal/pkg/adplatform"
)

func fromGoogle(r adplatform.GoogleAdsRow) (totals, error) {
	var t totals
	p := parser{}

	// cost is reported in micros of the account currency
	t.spend = p.decimal("costMicros", r.Metrics.CostMicros).Shift(-6)
	t.impressions = p.count("impressions", r.Metrics.Impressions)
	t.clicksAll = p.count("clicks", r.Metrics.Clicks)
	t.linkClicks = t.clicksAll
	t.purchases = p.decimal("conversions", r.Metrics.Conversions)
	t.purchaseValue = p.decimal("conversionsValue", r.Metrics.ConversionsValue)
	t.videoViews = p.count("videoViews", r.Metrics.VideoViews)
	return t, p.err
}

func fromMeta(r adplatform.MetaInsightRow) (totals, error) {
	var t totals
	p := parser{}

	t.spend = p.decimal("spend", r.Spend)
	t.reach = p.count("reach", r.Reach)
	t.impressions = p.count("impressions", r.Impressions)
	t.clicksAll = p.count("clicks", r.Clicks)
	t.linkClicks = p.count("inline_link_clicks", r.InlineLinkClicks)
	t.uniqueLinkClicks = p.count("unique_inline_link_clicks", r.UniqueInlineLinkClicks)

	t.purchases = p.action(r.Actions, metaPurchaseActions)
	t.purchaseValue = p.action(r.ActionValues, metaPurchaseActions)
	t.leads = p.action(r.Actions, metaLeadActions).IntPart()
	t.landingPageViews = p.action(r.Actions, metaLandingPageViewActions).IntPart()
	t.addToCart = p.action(r.Actions, metaAddToCartActions).IntPart()
	t.initiateCheckout = p.action(r.Actions, metaInitiateCheckoutActions).IntPart()
	t.videoViews = p.action(r.Actions, metaVideoViewActions).IntPart()

	t.videoP25 = p.sum(r.VideoP25).IntPart()
	t.videoP50 = p.sum(r.VideoP50).IntPart()
	t.videoP75 = p.sum(r.VideoP75).IntPart()
	t.videoP100 = p.sum(r.VideoP100).IntPart()
	return t, p.err
}

// parser records the first parse failure and returns zero afterwards.
type parser struct {
	err error
}

func (p *parser) decimal(field string, n adplatform.Number) decimal.Decimal {
	if p.err != nil || n == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		p.err = fmt.Errorf("field %s: invalid number %q", field, n.String())
		return decimal.Zero
	}
	return v
}

func (p *parser) count(field string, n adplatform.Number) int64 {
	return p.decimal(field, n).IntPart()
}

func (p *parser) action(actions []adplatform.MetaAction, aliases []string) decimal.Decimal {
	for _, alias := range aliases {
		for _, a := range actions {
			if a.ActionType == alias {
				return p.decimal("actions."+alias, a.Value)
			}
		}
	}
	return decimal.Zero
}

func (p *parser) sum(actions []adplatform.MetaAction) decimal.Decimal {
	total := decimal.Zero
	for _, a := range actions {
		total = total.Add(p.decimal("actions."+a.ActionType, a.Value))
	}
	return total
}
