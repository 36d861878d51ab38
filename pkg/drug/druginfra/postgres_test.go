package druginfra_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/drug"
	"github.com/Abraxas-365/drugcontent/pkg/drug/druginfra"
	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var drugCols = []string{
	"id", "drug_name", "generic_name", "brand_name", "manufacturer",
	"dosage_form", "strength", "route", "created_at",
	"indications_and_usage", "dosage_and_administration", "warnings_and_precautions",
	"adverse_reactions", "contraindications", "clinical_pharmacology",
	"how_supplied", "mechanism_of_action", "pharmacokinetics",
}

func newMockStore(t *testing.T) (*druginfra.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return druginfra.NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresGetByIDJoinsLabel(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM drugs d\s+LEFT JOIN drug_labels dl ON d.id = dl.drug_id\s+WHERE d.id = \$1`).
		WithArgs("R1").
		WillReturnRows(sqlmock.NewRows(drugCols).AddRow(
			"R1", "Lisinopril", "lisinopril", nil, "Acme Pharma",
			"Tablet", "10 mg", "Oral", created,
			"Lisinopril is indicated for the treatment of hypertension.", nil, nil,
			nil, nil, nil, nil, nil, nil,
		))

	d, err := store.GetByID(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "Lisinopril", d.Name)
	assert.Empty(t, d.BrandName)
	assert.Equal(t, created, d.CreatedAt)
	assert.Contains(t, d.Label.IndicationsAndUsage, "hypertension")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM drugs d`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := store.GetByID(context.Background(), "missing")
	assert.True(t, errx.IsCode(err, drug.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByIDBackendError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM drugs d`).WithArgs("R1").WillReturnError(errors.New("connection reset by peer"))

	_, err := store.GetByID(context.Background(), "R1")
	assert.True(t, errx.IsCode(err, drug.ErrStore))
	assert.ErrorContains(t, err, "connection reset")
}

func TestPostgresFindNeedingContent(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`LEFT JOIN drug_content c ON c.drug_id = d.id::text\s+WHERE c.drug_id IS NULL\s+ORDER BY d.created_at DESC\s+LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows(drugCols).
			AddRow("R2", "B", nil, nil, nil, nil, nil, nil, now, nil, nil, nil, nil, nil, nil, nil, nil, nil).
			AddRow("R1", "A", nil, nil, nil, nil, nil, nil, now.Add(-time.Hour), nil, nil, nil, nil, nil, nil, nil, nil, nil))

	ds, err := store.FindNeedingContent(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "R2", ds[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindStale(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE c.last_enhanced < \$1 OR c.content_score < \$2\s+ORDER BY c.last_enhanced ASC\s+LIMIT \$3`).
		WithArgs(cutoff, 60, 50).
		WillReturnRows(sqlmock.NewRows(drugCols))

	ds, err := store.FindStale(context.Background(), cutoff, 60, 50)
	require.NoError(t, err)
	assert.Empty(t, ds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertContentUsesOnConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`(?s)INSERT INTO drug_content .* ON CONFLICT \(drug_id\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertContent(context.Background(), "R1", drug.Content{
		SEOTitle:        "Lisinopril (10 mg)(Tablet) - Prescribing Information",
		MetaDescription: "Complete prescribing information for Lisinopril.",
		Keywords:        []string{"lisinopril"},
		FAQs:            []drug.FAQ{{Category: "General", Question: "What is it used for?", Answer: "Hypertension."}},
		ContentScore:    80,
		LastEnhanced:    time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetContentDecodesJSON(t *testing.T) {
	store, mock := newMockStore(t)
	enhanced := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	cols := []string{
		"drug_id", "seo_title", "meta_description", "keywords", "summary", "sections", "faqs",
		"structured_data", "content_score", "fallback_used", "generator", "last_enhanced",
	}
	mock.ExpectQuery(`FROM drug_content WHERE drug_id = \$1`).
		WithArgs("R1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"R1", "Title", "Meta", "{lisinopril,\"drug information\"}", "", `{"overview":"text"}`,
			`[{"category":"General","question":"What is Lisinopril?","answer":"An ACE inhibitor used for hypertension."}]`,
			`{"@type":"Drug"}`, 42, true, "fallback", enhanced,
		))

	c, err := store.GetContent(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, []string{"lisinopril", "drug information"}, c.Keywords)
	assert.Equal(t, "text", c.Sections["overview"])
	require.Len(t, c.FAQs, 1)
	assert.Equal(t, "General", c.FAQs[0].Category)
	assert.Equal(t, "Drug", c.StructuredData["@type"])
	assert.True(t, c.FallbackUsed)
	assert.Equal(t, 42, c.ContentScore)
}

func TestPostgresGetContentMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM drug_content`).WithArgs("R9").WillReturnError(sql.ErrNoRows)

	_, err := store.GetContent(context.Background(), "R9")
	assert.True(t, errx.IsCode(err, drug.ErrContentNotFound))
}
