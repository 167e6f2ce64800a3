package models

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"visionsync/backend/internal/utils"
)

func TestLeadsToCSV_EmptyYieldsHeaderOnly(t *testing.T) {
	out, err := LeadsToCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(leadCSVHeader, ",")+"\n", out)
}

func TestLeadsToCSV_RowContent(t *testing.T) {
	created := time.Date(2026, 2, 1, 12, 30, 0, 0, time.UTC)
	lead := Lead{
		Base:     Base{ID: utils.NewSixID()},
		Source:   LeadSourceCustomBuild,
		Status:   LeadStatusQualified,
		Priority: LeadPriorityHigh,
		Name:     "Ada",
		Email:    "ada@example.com",
		Company:  "Ada Ltd",
		Message:  "Build me a thing",
		CustomBuild: &CustomBuildDetails{
			ProjectType: "web-app",
			Budget:      BudgetOver250K,
			Timeline:    "3-months",
			Urgency:     UrgencyHigh,
		},
		CreatedAt: created,
	}

	out, err := LeadsToCSV([]Lead{lead})
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	row := records[1]
	require.Len(t, row, len(leadCSVHeader))
	assert.Equal(t, lead.ID.String(), row[0])
	assert.Equal(t, "2026-02-01T12:30:00Z", row[1])
	assert.Equal(t, "custom-build", row[2])
	assert.Equal(t, "qualified", row[3])
	assert.Equal(t, "high", row[4])
	assert.Equal(t, "web-app", row[9])
	assert.Equal(t, BudgetOver250K, row[10])
	assert.Equal(t, "3-months", row[11])
	// Investor-only columns stay empty for a custom-build lead.
	assert.Empty(t, row[13])
	assert.Empty(t, row[14])
}

func TestLeadsToCSV_EscapesDelimiters(t *testing.T) {
	lead := Lead{
		Base:    Base{ID: utils.NewSixID()},
		Source:  LeadSourceContact,
		Status:  LeadStatusNew,
		Name:    `Quote "Master", Esq.`,
		Email:   "q@example.com",
		Message: "Line one\nLine two, with comma",
		Contact: &ContactDetails{},
	}

	out, err := LeadsToCSV([]Lead{lead})
	require.NoError(t, err)

	// Round-trips through a CSV reader without corrupting fields.
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `Quote "Master", Esq.`, records[1][5])
	assert.Equal(t, "Line one\nLine two, with comma", records[1][16])
}

func TestLeadsToCSV_ProjectInquiryColumns(t *testing.T) {
	projectID := utils.NewSixID()
	lead := Lead{
		Base:   Base{ID: utils.NewSixID()},
		Source: LeadSourceProjectInquiry,
		Status: LeadStatusNew,
		Name:   "Ida",
		Email:  "ida@example.com",
		ProjectInquiry: &ProjectInquiryDetails{
			ProjectID: projectID,
			Budget:    Budget100KTo250K,
			Urgency:   UrgencyNormal,
		},
	}

	out, err := LeadsToCSV([]Lead{lead})
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, projectID.String(), records[1][15])
	assert.Equal(t, Budget100KTo250K, records[1][10])
}
