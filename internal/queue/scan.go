package queue

import (
	"database/sql"
	"fmt"
	"time"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job         Job
		kind        string
		status      string
		currentStep sql.NullString
		payload     sql.NullString
		errMessage  sql.NullString
		createdAt   string
		updatedAt   string
		startedAt   sql.NullString
		completedAt sql.NullString
	)
	err := row.Scan(
		&job.ID, &job.CorrelationID, &kind, &status, &job.Progress, &currentStep,
		&job.InputRef, &job.UnitCount, &job.AspectW, &job.AspectH, &payload, &errMessage,
		&job.UnitsProduced, &createdAt, &updatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Kind = Kind(kind)
	job.Status = Status(status)
	job.CurrentStep = currentStep.String
	job.PayloadJSON = payload.String
	job.ErrorMessage = errMessage.String

	if job.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if job.StartedAt, err = parseOptionalTimestamp(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if job.CompletedAt, err = parseOptionalTimestamp(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	return &job, nil
}

func scanUnit(row rowScanner) (*Unit, error) {
	var (
		unit       Unit
		assetURI   sql.NullString
		captionURI sql.NullString
		preview    sql.NullString
		createdAt  string
	)
	err := row.Scan(
		&unit.ID, &unit.JobID, &unit.Index, &unit.Start, &unit.End,
		&assetURI, &captionURI, &preview, &unit.SizeBytes, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	unit.AssetURI = assetURI.String
	unit.CaptionURI = captionURI.String
	unit.Preview = preview.String
	if unit.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse unit created_at: %w", err)
	}
	return &unit, nil
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}

func parseOptionalTimestamp(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	parsed, err := parseTimestamp(value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
