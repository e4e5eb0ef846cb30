package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, prompt, fingerprint, status, config_json, script_json, search_terms_json, audio_json, captions_json, footage_plan_json, background_file, final_file, receipt_json, error_message, degraded_captions, degraded_footage, progress_stage, progress_percent, progress_message, last_heartbeat, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               int64
		prompt           string
		fingerprint      sql.NullString
		statusStr        string
		configJSON       sql.NullString
		scriptJSON       sql.NullString
		searchTermsJSON  sql.NullString
		audioJSON        sql.NullString
		captionsJSON     sql.NullString
		footagePlanJSON  sql.NullString
		backgroundFile   sql.NullString
		finalFile        sql.NullString
		receiptJSON      sql.NullString
		errorMessage     sql.NullString
		degradedCaptions sql.NullInt64
		degradedFootage  sql.NullInt64
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&prompt,
		&fingerprint,
		&statusStr,
		&configJSON,
		&scriptJSON,
		&searchTermsJSON,
		&audioJSON,
		&captionsJSON,
		&footagePlanJSON,
		&backgroundFile,
		&finalFile,
		&receiptJSON,
		&errorMessage,
		&degradedCaptions,
		&degradedFootage,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Prompt:          prompt,
		Fingerprint:     fingerprint.String,
		Status:          Status(statusStr),
		ConfigJSON:      configJSON.String,
		ScriptJSON:      scriptJSON.String,
		SearchTermsJSON: searchTermsJSON.String,
		AudioJSON:       audioJSON.String,
		CaptionsJSON:    captionsJSON.String,
		FootagePlanJSON: footagePlanJSON.String,
		BackgroundFile:  backgroundFile.String,
		FinalFile:       finalFile.String,
		ReceiptJSON:     receiptJSON.String,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}
	if degradedCaptions.Valid {
		job.DegradedCaptions = degradedCaptions.Int64 != 0
	}
	if degradedFootage.Valid {
		job.DegradedFootage = degradedFootage.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
