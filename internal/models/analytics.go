package models

import (
	"sort"
	"time"

	"visionsync/backend/internal/utils"
)

// FunnelStage is one step in the conversion progression. Stages are
// advisory: callers may record any stage at any time and the tracker does
// not validate monotonic progression.
type FunnelStage string

const (
	StageAwareness     FunnelStage = "awareness"
	StageInterest      FunnelStage = "interest"
	StageConsideration FunnelStage = "consideration"
	StageIntent        FunnelStage = "intent"
	StageEvaluation    FunnelStage = "evaluation"
	StagePurchase      FunnelStage = "purchase"
)

// ValidFunnelStage reports whether s is one of the known funnel stages.
func ValidFunnelStage(s FunnelStage) bool {
	switch s {
	case StageAwareness, StageInterest, StageConsideration, StageIntent, StageEvaluation, StagePurchase:
		return true
	}
	return false
}

// PageViewEvent records a single page load. Events are immutable once recorded.
type PageViewEvent struct {
	Page      string    `json:"page"`
	Referrer  string    `json:"referrer,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// InteractionEvent records a user interaction with a page element.
type InteractionEvent struct {
	Type      string       `json:"type"`
	Element   string       `json:"element"`
	Page      string       `json:"page"`
	ProjectID *utils.SixID `json:"project_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// ConversionEvent records a funnel stage being reached.
type ConversionEvent struct {
	Stage     FunnelStage  `json:"stage"`
	Page      string       `json:"page"`
	ProjectID *utils.SixID `json:"project_id,omitempty"`
	LeadID    *utils.SixID `json:"lead_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// PageStats holds per-page aggregates.
type PageStats struct {
	Page           string  `bson:"page" json:"page"`
	Views          int     `bson:"views" json:"views"`
	ConversionRate float64 `bson:"conversion_rate" json:"conversion_rate"`
}

// AnalyticsData is the aggregate view derived on demand from the event
// ring buffers. BounceRate is a calendar-day approximation, not a session
// model: it is the fraction of same-day groupings with exactly one page view.
type AnalyticsData struct {
	TotalPageViews     int            `bson:"total_page_views" json:"total_page_views"`
	UniquePages        int            `bson:"unique_pages" json:"unique_pages"`
	Pages              []PageStats    `bson:"pages" json:"pages"`
	InteractionsByType map[string]int `bson:"interactions_by_type" json:"interactions_by_type"`
	TotalConversions   int            `bson:"total_conversions" json:"total_conversions"`
	BounceRate         float64        `bson:"bounce_rate" json:"bounce_rate"`
}

// AnalyticsSnapshot is a persisted point-in-time aggregate, written by the
// background snapshot task so dashboards survive ring-buffer eviction.
type AnalyticsSnapshot struct {
	Base       `bson:",inline"`
	Data       AnalyticsData `bson:"data" json:"data"`
	CapturedAt time.Time     `bson:"captured_at" json:"captured_at"`
}

// AggregateAnalytics derives the dashboard aggregate from the raw event
// buffers. Per-page conversion rate divides conversions recorded on the page
// by the interactions recorded on it, 0 when the page saw no interactions.
// Bounce rate groups views by (client, calendar day) and takes the fraction
// of groups with exactly one view.
func AggregateAnalytics(views []PageViewEvent, interactions []InteractionEvent, conversions []ConversionEvent) *AnalyticsData {
	data := &AnalyticsData{
		TotalPageViews:     len(views),
		InteractionsByType: make(map[string]int),
		TotalConversions:   len(conversions),
	}

	viewsByPage := make(map[string]int)
	pageOrder := []string{}
	for _, v := range views {
		if _, seen := viewsByPage[v.Page]; !seen {
			pageOrder = append(pageOrder, v.Page)
		}
		viewsByPage[v.Page]++
	}
	data.UniquePages = len(viewsByPage)

	conversionsByPage := make(map[string]int)
	for _, c := range conversions {
		conversionsByPage[c.Page]++
	}

	interactionsByPage := make(map[string]int)
	for _, it := range interactions {
		interactionsByPage[it.Page]++
	}

	for _, page := range pageOrder {
		stats := PageStats{Page: page, Views: viewsByPage[page]}
		if n := interactionsByPage[page]; n > 0 {
			stats.ConversionRate = float64(conversionsByPage[page]) / float64(n)
		}
		data.Pages = append(data.Pages, stats)
	}
	sort.SliceStable(data.Pages, func(i, j int) bool {
		return data.Pages[i].Views > data.Pages[j].Views
	})

	for _, it := range interactions {
		data.InteractionsByType[it.Type]++
	}

	groups := make(map[string]int)
	for _, v := range views {
		key := v.ClientID + "|" + v.Timestamp.UTC().Format("2006-01-02")
		groups[key]++
	}
	if len(groups) > 0 {
		bounced := 0
		for _, n := range groups {
			if n == 1 {
				bounced++
			}
		}
		data.BounceRate = float64(bounced) / float64(len(groups))
	}

	return data
}
