package sqlutil

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between Go types and sql.Null* types

// ToSqlString converts a Go string pointer to sql.NullString
func ToSqlString(val *string) sql.NullString {
	if val == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *val, Valid: true}
}

// ToSqlStringNonEmpty treats the empty string as NULL
func ToSqlStringNonEmpty(val string) sql.NullString {
	return sql.NullString{String: val, Valid: val != ""}
}

// FromSqlStringPtr converts sql.NullString to Go string pointer
func FromSqlStringPtr(val sql.NullString) *string {
	if !val.Valid {
		return nil
	}
	return &val.String
}

// ToSqlPositiveFloat64 treats zero and negative values as NULL
func ToSqlPositiveFloat64(val float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: val, Valid: val > 0}
}

// FromSqlFloat64Ptr converts sql.NullFloat64 to Go float64 pointer
func FromSqlFloat64Ptr(val sql.NullFloat64) *float64 {
	if !val.Valid {
		return nil
	}
	return &val.Float64
}

// FromSqlTime converts sql.NullTime to Go time pointer
func FromSqlTime(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	return &val.Time
}

// ToNullRawMessage stores an empty document as NULL
func ToNullRawMessage(val []byte) pqtype.NullRawMessage {
	return pqtype.NullRawMessage{RawMessage: val, Valid: len(val) > 0}
}

// FromNullRawMessage converts pqtype.NullRawMessage to json.RawMessage
func FromNullRawMessage(val pqtype.NullRawMessage) json.RawMessage {
	if !val.Valid {
		return nil
	}
	return val.RawMessage
}
