package druginfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/drug"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const drugColumns = `
	d.id::text AS id, d.drug_name, d.generic_name, d.brand_name, d.manufacturer,
	d.dosage_form, d.strength, d.route, d.created_at,
	dl.indications_and_usage, dl.dosage_and_administration, dl.warnings_and_precautions,
	dl.adverse_reactions, dl.contraindications, dl.clinical_pharmacology,
	dl.how_supplied, dl.mechanism_of_action, dl.pharmacokinetics`

const contentColumns = `
	drug_id, seo_title, meta_description, keywords, summary, sections, faqs,
	structured_data, content_score, fallback_used, generator, last_enhanced`

// PostgresStore reads the catalog tables (drugs, drug_labels) and owns
// drug_content.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ drug.Store = (*PostgresStore)(nil)

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*drug.Drug, error) {
	var row drugRow
	query := `SELECT ` + drugColumns + `
		FROM drugs d
		LEFT JOIN drug_labels dl ON d.id = dl.drug_id
		WHERE d.id = $1
		LIMIT 1`
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, drug.NotFound(id)
		}
		return nil, drug.StoreError("get_by_id", err).WithDetail("drug_id", id)
	}
	d := row.toDomain()
	return &d, nil
}

func (s *PostgresStore) FindNeedingContent(ctx context.Context, limit int) ([]drug.Drug, error) {
	var rows []drugRow
	query := `SELECT ` + drugColumns + `
		FROM drugs d
		LEFT JOIN drug_labels dl ON d.id = dl.drug_id
		LEFT JOIN drug_content c ON c.drug_id = d.id::text
		WHERE c.drug_id IS NULL
		ORDER BY d.created_at DESC
		LIMIT $1`
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, drug.StoreError("find_needing_content", err)
	}
	return toDomainSlice(rows), nil
}

func (s *PostgresStore) FindStale(ctx context.Context, olderThan time.Time, minScore int, limit int) ([]drug.Drug, error) {
	var rows []drugRow
	query := `SELECT ` + drugColumns + `
		FROM drugs d
		LEFT JOIN drug_labels dl ON d.id = dl.drug_id
		JOIN drug_content c ON c.drug_id = d.id::text
		WHERE c.last_enhanced < $1 OR c.content_score < $2
		ORDER BY c.last_enhanced ASC
		LIMIT $3`
	if err := s.db.SelectContext(ctx, &rows, query, olderThan, minScore, limit); err != nil {
		return nil, drug.StoreError("find_stale", err)
	}
	return toDomainSlice(rows), nil
}

func (s *PostgresStore) UpsertContent(ctx context.Context, drugID string, content drug.Content) error {
	content.DrugID = drugID
	row, err := toContentRow(content)
	if err != nil {
		return drug.StoreError("encode_content", err).WithDetail("drug_id", drugID)
	}

	query := `
		INSERT INTO drug_content (` + contentColumns + `, updated_at)
		VALUES (
			:drug_id, :seo_title, :meta_description, :keywords, :summary, :sections, :faqs,
			:structured_data, :content_score, :fallback_used, :generator, :last_enhanced, NOW()
		)
		ON CONFLICT (drug_id) DO UPDATE SET
			seo_title = EXCLUDED.seo_title,
			meta_description = EXCLUDED.meta_description,
			keywords = EXCLUDED.keywords,
			summary = EXCLUDED.summary,
			sections = EXCLUDED.sections,
			faqs = EXCLUDED.faqs,
			structured_data = EXCLUDED.structured_data,
			content_score = EXCLUDED.content_score,
			fallback_used = EXCLUDED.fallback_used,
			generator = EXCLUDED.generator,
			last_enhanced = EXCLUDED.last_enhanced,
			updated_at = NOW()`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return drug.StoreError("upsert_content", err).WithDetail("drug_id", drugID)
	}
	return nil
}

func (s *PostgresStore) GetContent(ctx context.Context, drugID string) (*drug.Content, error) {
	var row contentRow
	query := `SELECT ` + contentColumns + ` FROM drug_content WHERE drug_id = $1`
	if err := s.db.GetContext(ctx, &row, query, drugID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, drug.ContentNotFound(drugID)
		}
		return nil, drug.StoreError("get_content", err).WithDetail("drug_id", drugID)
	}
	c, err := row.toDomain()
	if err != nil {
		return nil, drug.StoreError("decode_content", err).WithDetail("drug_id", drugID)
	}
	return &c, nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type drugRow struct {
	ID           string         `db:"id"`
	Name         sql.NullString `db:"drug_name"`
	GenericName  sql.NullString `db:"generic_name"`
	BrandName    sql.NullString `db:"brand_name"`
	Manufacturer sql.NullString `db:"manufacturer"`
	DosageForm   sql.NullString `db:"dosage_form"`
	Strength     sql.NullString `db:"strength"`
	Route        sql.NullString `db:"route"`
	CreatedAt    time.Time      `db:"created_at"`

	IndicationsAndUsage     sql.NullString `db:"indications_and_usage"`
	DosageAndAdministration sql.NullString `db:"dosage_and_administration"`
	WarningsAndPrecautions  sql.NullString `db:"warnings_and_precautions"`
	AdverseReactions        sql.NullString `db:"adverse_reactions"`
	Contraindications       sql.NullString `db:"contraindications"`
	ClinicalPharmacology    sql.NullString `db:"clinical_pharmacology"`
	HowSupplied             sql.NullString `db:"how_supplied"`
	MechanismOfAction       sql.NullString `db:"mechanism_of_action"`
	Pharmacokinetics        sql.NullString `db:"pharmacokinetics"`
}

func (r drugRow) toDomain() drug.Drug {
	return drug.Drug{
		ID:           r.ID,
		Name:         r.Name.String,
		GenericName:  r.GenericName.String,
		BrandName:    r.BrandName.String,
		Manufacturer: r.Manufacturer.String,
		DosageForm:   r.DosageForm.String,
		Strength:     r.Strength.String,
		Route:        r.Route.String,
		CreatedAt:    r.CreatedAt,
		Label: drug.Label{
			IndicationsAndUsage:     r.IndicationsAndUsage.String,
			DosageAndAdministration: r.DosageAndAdministration.String,
			WarningsAndPrecautions:  r.WarningsAndPrecautions.String,
			AdverseReactions:        r.AdverseReactions.String,
			Contraindications:       r.Contraindications.String,
			ClinicalPharmacology:    r.ClinicalPharmacology.String,
			HowSupplied:             r.HowSupplied.String,
			MechanismOfAction:       r.MechanismOfAction.String,
			Pharmacokinetics:        r.Pharmacokinetics.String,
		},
	}
}

func toDomainSlice(rows []drugRow) []drug.Drug {
	out := make([]drug.Drug, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

// JSONB columns travel as strings; lib/pq would encode []byte as bytea.
type contentRow struct {
	DrugID          string         `db:"drug_id"`
	SEOTitle        string         `db:"seo_title"`
	MetaDescription string         `db:"meta_description"`
	Keywords        pq.StringArray `db:"keywords"`
	Summary         string         `db:"summary"`
	Sections        string         `db:"sections"`
	FAQs            string         `db:"faqs"`
	StructuredData  string         `db:"structured_data"`
	ContentScore    int            `db:"content_score"`
	FallbackUsed    bool           `db:"fallback_used"`
	Generator       string         `db:"generator"`
	LastEnhanced    time.Time      `db:"last_enhanced"`
}

func toContentRow(c drug.Content) (contentRow, error) {
	sections, err := marshalOr(c.Sections, "{}")
	if err != nil {
		return contentRow{}, err
	}
	faqs, err := marshalOr(c.FAQs, "[]")
	if err != nil {
		return contentRow{}, err
	}
	structured, err := marshalOr(c.StructuredData, "{}")
	if err != nil {
		return contentRow{}, err
	}
	keywords := c.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return contentRow{
		DrugID:          c.DrugID,
		SEOTitle:        c.SEOTitle,
		MetaDescription: c.MetaDescription,
		Keywords:        pq.StringArray(keywords),
		Summary:         c.Summary,
		Sections:        sections,
		FAQs:            faqs,
		StructuredData:  structured,
		ContentScore:    c.ContentScore,
		FallbackUsed:    c.FallbackUsed,
		Generator:       c.Generator,
		LastEnhanced:    c.LastEnhanced.UTC(),
	}, nil
}

func (r contentRow) toDomain() (drug.Content, error) {
	c := drug.Content{
		DrugID:          r.DrugID,
		SEOTitle:        r.SEOTitle,
		MetaDescription: r.MetaDescription,
		Keywords:        []string(r.Keywords),
		Summary:         r.Summary,
		ContentScore:    r.ContentScore,
		FallbackUsed:    r.FallbackUsed,
		Generator:       r.Generator,
		LastEnhanced:    r.LastEnhanced,
	}
	if err := unmarshalIfSet(r.Sections, &c.Sections); err != nil {
		return drug.Content{}, err
	}
	if err := unmarshalIfSet(r.FAQs, &c.FAQs); err != nil {
		return drug.Content{}, err
	}
	if err := unmarshalIfSet(r.StructuredData, &c.StructuredData); err != nil {
		return drug.Content{}, err
	}
	return c, nil
}

func marshalOr(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func unmarshalIfSet(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}
