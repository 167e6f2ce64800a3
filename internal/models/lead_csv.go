package models

import (
	"encoding/csv"
	"strings"
	"time"
)

// leadCSVHeader is the fixed column order of a lead export. Changing the
// order breaks downstream spreadsheet imports in the back-office.
var leadCSVHeader = []string{
	"id",
	"created_at",
	"source",
	"status",
	"priority",
	"name",
	"email",
	"company",
	"phone",
	"project_type",
	"budget",
	"timeline",
	"urgency",
	"investment_range",
	"inquiry_type",
	"project_id",
	"message",
}

// LeadsToCSV serializes a lead collection to a comma-separated table with a
// fixed column order. Fields containing delimiters, quotes or newlines are
// quoted per RFC 4180 by encoding/csv. Zero leads yields exactly the header row.
func LeadsToCSV(leads []Lead) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(leadCSVHeader); err != nil {
		return "", err
	}

	for i := range leads {
		if err := w.Write(leadCSVRow(&leads[i])); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func leadCSVRow(l *Lead) []string {
	var projectType, budget, timeline, urgency, investmentRange, inquiryType, projectID string

	switch {
	case l.CustomBuild != nil:
		projectType = l.CustomBuild.ProjectType
		budget = l.CustomBuild.Budget
		timeline = l.CustomBuild.Timeline
		urgency = l.CustomBuild.Urgency
	case l.Investor != nil:
		investmentRange = l.Investor.InvestmentRange
		inquiryType = l.Investor.InquiryType
	case l.ProjectInquiry != nil:
		budget = l.ProjectInquiry.Budget
		timeline = l.ProjectInquiry.Timeline
		urgency = l.ProjectInquiry.Urgency
		if !l.ProjectInquiry.ProjectID.IsZero() {
			projectID = l.ProjectInquiry.ProjectID.String()
		}
	}

	return []string{
		l.ID.String(),
		l.CreatedAt.UTC().Format(time.RFC3339),
		string(l.Source),
		string(l.Status),
		string(l.Priority),
		l.Name,
		l.Email,
		l.Company,
		l.Phone,
		projectType,
		budget,
		timeline,
		urgency,
		investmentRange,
		inquiryType,
		projectID,
		l.Message,
	}
}
