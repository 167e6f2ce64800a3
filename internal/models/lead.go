package models

import (
	"time"

	"visionsync/backend/internal/utils"
)

// LeadSource identifies which public form produced a lead.
type LeadSource string

const (
	LeadSourceContact        LeadSource = "contact"
	LeadSourceCustomBuild    LeadSource = "custom-build"
	LeadSourceInvestor       LeadSource = "investor"
	LeadSourceProjectInquiry LeadSource = "project-inquiry"
)

// ValidLeadSource reports whether s is one of the known lead sources.
func ValidLeadSource(s LeadSource) bool {
	switch s {
	case LeadSourceContact, LeadSourceCustomBuild, LeadSourceInvestor, LeadSourceProjectInquiry:
		return true
	}
	return false
}

// LeadStatus tracks where a lead sits in the sales workflow.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusClosed    LeadStatus = "closed"
)

// ValidLeadStatus reports whether s is one of the known lead statuses.
func ValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusConverted, LeadStatusClosed:
		return true
	}
	return false
}

// LeadPriority is derived once at creation time and never recomputed.
type LeadPriority string

const (
	LeadPriorityLow    LeadPriority = "low"
	LeadPriorityMedium LeadPriority = "medium"
	LeadPriorityHigh   LeadPriority = "high"
	LeadPriorityUrgent LeadPriority = "urgent"
)

// Urgency values accepted on custom-build and project inquiry forms.
const (
	UrgencyLow      = "low"
	UrgencyNormal   = "normal"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// Budget brackets offered on the custom-build and project inquiry forms.
const (
	BudgetUnder10K   = "under-10k"
	Budget10KTo50K   = "10k-50k"
	Budget50KTo100K  = "50k-100k"
	Budget100KTo250K = "100k-250k"
	BudgetOver250K   = "over-250k"
)

// Investment ranges offered on the investor form.
const (
	InvestmentUnder100K  = "under-100k"
	Investment100KTo500K = "100k-500k"
	Investment500KTo1M   = "500k-1m"
	InvestmentOver1M     = "over-1m"
)

// ContactDetails carries the extra fields of a plain contact form submission.
type ContactDetails struct {
	Subject string `bson:"subject,omitempty" json:"subject,omitempty"`
}

// CustomBuildDetails carries the structured fields of a custom-build request.
type CustomBuildDetails struct {
	ProjectType string `bson:"project_type" json:"project_type"`
	Budget      string `bson:"budget,omitempty" json:"budget,omitempty"`
	Timeline    string `bson:"timeline,omitempty" json:"timeline,omitempty"`
	Urgency     string `bson:"urgency,omitempty" json:"urgency,omitempty"`
}

// InvestorDetails carries the structured fields of an investor enquiry.
type InvestorDetails struct {
	InvestmentRange string `bson:"investment_range,omitempty" json:"investment_range,omitempty"`
	InquiryType     string `bson:"inquiry_type,omitempty" json:"inquiry_type,omitempty"`
}

// ProjectInquiryDetails carries the structured fields of an enquiry about a
// specific catalogue project.
type ProjectInquiryDetails struct {
	ProjectID utils.SixID `bson:"project_id,omitempty" json:"project_id,omitempty"`
	Budget    string      `bson:"budget,omitempty" json:"budget,omitempty"`
	Timeline  string      `bson:"timeline,omitempty" json:"timeline,omitempty"`
	Urgency   string      `bson:"urgency,omitempty" json:"urgency,omitempty"`
}

// Lead represents a captured contact/inquiry record from a form submission.
// At most the detail pointer matching Source is set; the rest are nil.
type Lead struct {
	Base      `bson:",inline"`
	Source    LeadSource   `bson:"source" json:"source"`
	Status    LeadStatus   `bson:"status" json:"status"`
	Priority  LeadPriority `bson:"priority" json:"priority"` // Fixed at creation, never re-derived
	Name      string       `bson:"name" json:"name"`
	Email     string       `bson:"email" json:"email"`
	Company   string       `bson:"company,omitempty" json:"company,omitempty"`
	Phone     string       `bson:"phone,omitempty" json:"phone,omitempty"`
	Message   string       `bson:"message" json:"message"`

	Contact        *ContactDetails        `bson:"contact,omitempty" json:"contact,omitempty"`
	CustomBuild    *CustomBuildDetails    `bson:"custom_build,omitempty" json:"custom_build,omitempty"`
	Investor       *InvestorDetails       `bson:"investor,omitempty" json:"investor,omitempty"`
	ProjectInquiry *ProjectInquiryDetails `bson:"project_inquiry,omitempty" json:"project_inquiry,omitempty"`

	// ConversionMarkedAt is stamped by the analytics tracker when an
	// "intent" funnel conversion references this lead. Best-effort only.
	ConversionMarkedAt *time.Time `bson:"conversion_marked_at,omitempty" json:"conversion_marked_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	Notified  bool      `bson:"notified" json:"notified"` // True once the notification email task succeeded
	Deleted   bool      `bson:"deleted" json:"-"`         // Soft delete flag
}

// PruneDetails nils every detail pointer that does not match Source, keeping
// the invariant that at most the matching block is stored. Priority and CSV
// derivation read whichever block is set, so a stray block from a crafted
// submission would otherwise leak into them.
func (l *Lead) PruneDetails() {
	if l.Source != LeadSourceContact {
		l.Contact = nil
	}
	if l.Source != LeadSourceCustomBuild {
		l.CustomBuild = nil
	}
	if l.Source != LeadSourceInvestor {
		l.Investor = nil
	}
	if l.Source != LeadSourceProjectInquiry {
		l.ProjectInquiry = nil
	}
}

// urgency returns the urgency value submitted with the lead, if any.
func (l *Lead) urgency() string {
	switch {
	case l.CustomBuild != nil:
		return l.CustomBuild.Urgency
	case l.ProjectInquiry != nil:
		return l.ProjectInquiry.Urgency
	}
	return ""
}

// budget returns the budget bracket or investment range submitted with the lead.
func (l *Lead) budget() string {
	switch {
	case l.CustomBuild != nil:
		return l.CustomBuild.Budget
	case l.ProjectInquiry != nil:
		return l.ProjectInquiry.Budget
	case l.Investor != nil:
		return l.Investor.InvestmentRange
	}
	return ""
}

// DerivePriority computes a lead's priority from the submitted urgency and
// budget/investment values. Precedence: urgency first, then budget bracket.
func DerivePriority(urgency, budget string) LeadPriority {
	if urgency == UrgencyCritical || urgency == UrgencyHigh {
		return LeadPriorityUrgent
	}
	switch budget {
	case BudgetOver250K, InvestmentOver1M:
		return LeadPriorityHigh
	case Budget50KTo100K, Budget100KTo250K, Investment100KTo500K, Investment500KTo1M:
		return LeadPriorityMedium
	}
	return LeadPriorityLow
}

// DerivedPriority applies DerivePriority to the lead's own submitted fields.
func (l *Lead) DerivedPriority() LeadPriority {
	return DerivePriority(l.urgency(), l.budget())
}

// LeadStats summarizes the lead collection for the admin dashboard.
type LeadStats struct {
	Total          int                `json:"total"`
	ByStatus       map[LeadStatus]int `json:"by_status"`
	CreatedToday   int                `json:"created_today"`
	CreatedLast7d  int                `json:"created_last_7d"`
	ConversionRate float64            `json:"conversion_rate"`
}

// ComputeLeadStats derives dashboard statistics from a lead collection.
// "Today" is a calendar-day match against now's location; the trailing
// window is a plain 7*24h cutoff.
func ComputeLeadStats(leads []Lead, now time.Time) *LeadStats {
	stats := &LeadStats{
		ByStatus: make(map[LeadStatus]int),
	}

	weekCutoff := now.Add(-7 * 24 * time.Hour)
	for _, lead := range leads {
		stats.Total++
		stats.ByStatus[lead.Status]++

		created := lead.CreatedAt.In(now.Location())
		if created.Year() == now.Year() && created.YearDay() == now.YearDay() {
			stats.CreatedToday++
		}
		if lead.CreatedAt.After(weekCutoff) {
			stats.CreatedLast7d++
		}
	}

	if stats.Total > 0 {
		stats.ConversionRate = float64(stats.ByStatus[LeadStatusConverted]) / float64(stats.Total)
	}
	return stats
}
