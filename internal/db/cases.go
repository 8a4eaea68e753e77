package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/incident.report/internal/report"
)

// ErrCaseNotFound is returned when no case matches the id and owner.
var ErrCaseNotFound = errors.New("case not found")

// DefaultOwner owns cases submitted without an investigator identity.
const DefaultOwner = "SYSTEM"

// CaseRecord is one stored case.
type CaseRecord struct {
	CaseID        string      `db:"case_id" json:"case_id"`
	Owner         string      `db:"owner" json:"owner"`
	Kind          report.Kind `db:"kind" json:"kind"`
	SeverityScore float64     `db:"severity_score" json:"severity_score"`
	SeverityLevel string      `db:"severity_level" json:"severity_level"`
	SourceFile    string      `db:"source_file" json:"source_file"`
	ContentHash   string      `db:"content_hash" json:"content_hash,omitempty"`
	ReportJSON    string      `db:"report_json" json:"-"`
	CreatedUnix   int64       `db:"created_unix" json:"created_unix"`
}

// CreatedAt is the storage time in UTC.
func (c CaseRecord) CreatedAt() time.Time { return time.Unix(c.CreatedUnix, 0).UTC() }

// ImageReport decodes the stored image report.
func (c CaseRecord) ImageReport() (*report.CaseReport, error) {
	if c.Kind != report.KindImage {
		return nil, fmt.Errorf("case %s is a %s case", c.CaseID, c.Kind)
	}
	var rep report.CaseReport
	if err := json.Unmarshal([]byte(c.ReportJSON), &rep); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", c.CaseID, err)
	}
	return &rep, nil
}

// VideoReport decodes the stored video report.
func (c CaseRecord) VideoReport() (*report.VideoReport, error) {
	if c.Kind != report.KindVideo {
		return nil, fmt.Errorf("case %s is a %s case", c.CaseID, c.Kind)
	}
	var rep report.VideoReport
	if err := json.Unmarshal([]byte(c.ReportJSON), &rep); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", c.CaseID, err)
	}
	return &rep, nil
}

const insertCase = `
	INSERT INTO cases (
		case_id, owner, kind, severity_score, severity_level,
		source_file, content_hash, report_json, created_unix
	) VALUES (
		:case_id, :owner, :kind, :severity_score, :severity_level,
		:source_file, :content_hash, :report_json, :created_unix
	)
	ON CONFLICT (case_id, owner) DO NOTHING`

func owner(o string) string {
	if o == "" {
		return DefaultOwner
	}
	return o
}

// SaveImageCase stores an image report for owner. Saving the same case for
// the same owner again is a no-op, which happens when a cached report is
// returned for a repeated upload.
func (db *DB) SaveImageCase(ctx context.Context, rep *report.CaseReport, ownerID string, at time.Time) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	rec := CaseRecord{
		CaseID:        rep.Case.CaseID,
		Owner:         owner(ownerID),
		Kind:          report.KindImage,
		SeverityScore: float64(rep.Analysis.Severity.Score),
		SeverityLevel: string(rep.Analysis.Severity.Level),
		SourceFile:    rep.Evidence.OriginalImage,
		ContentHash:   rep.Evidence.ContentHash,
		ReportJSON:    string(data),
		CreatedUnix:   at.Unix(),
	}
	if _, err := db.X.NamedExecContext(ctx, insertCase, rec); err != nil {
		return fmt.Errorf("failed to save case %s: %w", rec.CaseID, err)
	}
	return nil
}

// SaveVideoCase stores a video report and its custody record in one
// transaction.
func (db *DB) SaveVideoCase(ctx context.Context, rep *report.VideoReport, ownerID string, at time.Time) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	custody, err := json.Marshal(rep.ChainOfCustody)
	if err != nil {
		return fmt.Errorf("failed to encode custody record: %w", err)
	}
	rec := CaseRecord{
		CaseID:        rep.Case.CaseID,
		Owner:         owner(ownerID),
		Kind:          report.KindVideo,
		SeverityScore: rep.Analysis.Severity.Score,
		SeverityLevel: string(rep.Analysis.Severity.Level),
		SourceFile:    rep.Evidence.VideoFile,
		ContentHash:   rep.ChainOfCustody.FileHash,
		ReportJSON:    string(data),
		CreatedUnix:   at.Unix(),
	}

	tx, err := db.X.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertCase, rec); err != nil {
		return fmt.Errorf("failed to save case %s: %w", rec.CaseID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO custody_records (
			case_id, owner, file_hash, handled_by, frames_hashed, record_json, recorded_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (case_id, owner) DO NOTHING`,
		rec.CaseID, rec.Owner, rep.ChainOfCustody.FileHash, rep.ChainOfCustody.HandledBy,
		rep.ChainOfCustody.Evidence.FramesHashed, string(custody), rep.ChainOfCustody.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save custody record %s: %w", rec.CaseID, err)
	}
	return tx.Commit()
}

// GetCase returns the case with id owned by owner.
func (db *DB) GetCase(ctx context.Context, caseID, ownerID string) (*CaseRecord, error) {
	var rec CaseRecord
	err := db.X.GetContext(ctx, &rec, `SELECT * FROM cases WHERE case_id = ? AND owner = ?`, caseID, owner(ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", caseID, err)
	}
	return &rec, nil
}

// ListCases returns owner's cases, newest first. limit <= 0 means 100.
func (db *DB) ListCases(ctx context.Context, ownerID string, limit int) ([]CaseRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	recs := []CaseRecord{}
	err := db.X.SelectContext(ctx, &recs, `
		SELECT * FROM cases
		WHERE owner = ?
		ORDER BY created_unix DESC, case_id
		LIMIT ?`, owner(ownerID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return recs, nil
}

// DeleteCase removes a case and, by cascade, its custody record.
func (db *DB) DeleteCase(ctx context.Context, caseID, ownerID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM cases WHERE case_id = ? AND owner = ?`, caseID, owner(ownerID))
	if err != nil {
		return fmt.Errorf("failed to delete case %s: %w", caseID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete case %s: %w", caseID, err)
	}
	if n == 0 {
		return ErrCaseNotFound
	}
	return nil
}

// GetCustody returns the stored custody record of a video case.
func (db *DB) GetCustody(ctx context.Context, caseID, ownerID string) (*report.CustodyRecord, error) {
	var data string
	err := db.X.GetContext(ctx, &data, `
		SELECT record_json FROM custody_records WHERE case_id = ? AND owner = ?`, caseID, owner(ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get custody record %s: %w", caseID, err)
	}
	var rec report.CustodyRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode custody record %s: %w", caseID, err)
	}
	return &rec, nil
}
