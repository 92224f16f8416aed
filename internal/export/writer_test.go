package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ledgerlens/internal/domain"
)

func sampleExpenses() []domain.Expense {
	conf := 0.876
	return []domain.Expense{
		{
			ID:           uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			ExpenseDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			MerchantName: "Corner Cafe",
			Description:  "Latte, Bagel",
			Amount:       decimal.RequireFromString("14.5"),
			Currency:     "USD",
			Category:     "Food & Dining",
			Source:       domain.ExpenseSourceScanner,
			Confidence:   &conf,
			CreatedAt:    time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		},
		{
			ID:          uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			ExpenseDate: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			Description: "bus, \"night\" line",
			Amount:      decimal.RequireFromString("2"),
			Category:    "Transportation",
			Source:      domain.ExpenseSourceManual,
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWriteCSV_Expenses(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, ExpenseTable(sampleExpenses())))

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, BOM))

	rows, err := csv.NewReader(bytes.NewReader(raw[len(BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Created At", rows[0][10])

	assert.Equal(t, "2024-03-01", rows[1][1])
	assert.Equal(t, "14.50", rows[1][4])
	assert.Equal(t, "0.88", rows[1][8])
	assert.Equal(t, "2024-03-01T09:30:00Z", rows[1][10])

	assert.Equal(t, "bus, \"night\" line", rows[2][3])
	assert.Equal(t, "2.00", rows[2][4])
	assert.Empty(t, rows[2][8])
}

func TestWriteXLSX_Corrections(t *testing.T) {
	amt := decimal.RequireFromString("15.99")
	corrections := []domain.Correction{
		{
			ID:              uuid.MustParse("33333333-3333-3333-3333-333333333333"),
			OriginalInput:   domain.CategorizationInput{Description: "Netflix subscription", Amount: &amt},
			CorrectCategory: "Entertainment",
			SubmittedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, CorrectionTable(corrections)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Corrections")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Correct Category", rows[0][4])
	assert.Equal(t, "Netflix subscription", rows[1][2])
	assert.Equal(t, "15.99", rows[1][3])
	assert.Equal(t, "Entertainment", rows[1][4])
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input, expected string
	}{
		{"expenses", "expenses"},
		{"March Expenses 2024", "March_Expenses_2024"},
		{"a/b\\c", "a_b_c"},
		{"___", "export"},
		{"", "export"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, SanitizeFilename(tt.input), tt.input)
	}
	assert.Len(t, SanitizeFilename(string(bytes.Repeat([]byte("a"), 150))), 100)
}

func TestBuildFilename(t *testing.T) {
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "corrections_2024-06-30.xlsx", BuildFilename("corrections", FormatXLSX, now))
	assert.Equal(t, "my_expenses_2024-06-30.csv", BuildFilename("my expenses", FormatCSV, now))
}
