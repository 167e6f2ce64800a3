package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAggregateAnalytics(t *testing.T) {
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	views := []PageViewEvent{
		{Page: "/home", ClientID: "a", Timestamp: day},
		{Page: "/home", ClientID: "a", Timestamp: day.Add(time.Minute)},
		{Page: "/pricing", ClientID: "a", Timestamp: day.Add(2 * time.Minute)},
		{Page: "/home", ClientID: "b", Timestamp: day},
	}
	interactions := []InteractionEvent{
		{Type: "click", Element: "cta", Page: "/home"},
		{Type: "click", Element: "nav", Page: "/pricing"},
		{Type: "hover", Element: "card", Page: "/home"},
	}
	conversions := []ConversionEvent{
		{Stage: StageIntent, Page: "/pricing", Timestamp: day},
	}

	data := AggregateAnalytics(views, interactions, conversions)

	assert.Equal(t, 4, data.TotalPageViews)
	assert.Equal(t, 2, data.UniquePages)
	assert.Equal(t, 1, data.TotalConversions)
	assert.Equal(t, 2, data.InteractionsByType["click"])
	assert.Equal(t, 1, data.InteractionsByType["hover"])

	assert.Equal(t, "/home", data.Pages[0].Page)
	assert.Equal(t, 3, data.Pages[0].Views)
	assert.Equal(t, 0.0, data.Pages[0].ConversionRate)
	assert.Equal(t, "/pricing", data.Pages[1].Page)
	assert.Equal(t, 1.0, data.Pages[1].ConversionRate)

	// Client a has 3 views that day, client b has 1: one bounce of two groups.
	assert.Equal(t, 0.5, data.BounceRate)
}

func TestAggregateAnalytics_RateNeedsInteractions(t *testing.T) {
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	views := []PageViewEvent{
		{Page: "/promo", ClientID: "a", Timestamp: day},
		{Page: "/promo", ClientID: "b", Timestamp: day},
	}
	conversions := []ConversionEvent{
		{Stage: StageIntent, Page: "/promo", Timestamp: day},
	}

	// Conversions without any interactions on the page must not produce a
	// rate from the view count.
	data := AggregateAnalytics(views, nil, conversions)
	assert.Equal(t, 0.0, data.Pages[0].ConversionRate)

	data = AggregateAnalytics(views, []InteractionEvent{
		{Type: "click", Element: "cta", Page: "/promo"},
		{Type: "click", Element: "cta", Page: "/promo"},
	}, conversions)
	assert.Equal(t, 0.5, data.Pages[0].ConversionRate)
}

func TestAggregateAnalytics_Empty(t *testing.T) {
	data := AggregateAnalytics(nil, nil, nil)
	assert.Zero(t, data.TotalPageViews)
	assert.Zero(t, data.UniquePages)
	assert.Empty(t, data.Pages)
	assert.Zero(t, data.BounceRate)
}

func TestAggregateAnalytics_BounceGroupsByDay(t *testing.T) {
	day1 := time.Date(2026, 3, 10, 23, 50, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 11, 0, 10, 0, 0, time.UTC)

	// Same client, one view either side of midnight: two separate groups,
	// both bounces.
	views := []PageViewEvent{
		{Page: "/home", ClientID: "a", Timestamp: day1},
		{Page: "/home", ClientID: "a", Timestamp: day2},
	}
	data := AggregateAnalytics(views, nil, nil)
	assert.Equal(t, 1.0, data.BounceRate)
}

func TestValidFunnelStage(t *testing.T) {
	assert.True(t, ValidFunnelStage(StageAwareness))
	assert.True(t, ValidFunnelStage(StagePurchase))
	assert.False(t, ValidFunnelStage("retention"))
	assert.False(t, ValidFunnelStage(""))
}
