package sqlutil

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNullableConverters(t *testing.T) {
	require.False(t, ToSqlStringNonEmpty("").Valid)
	require.Equal(t, sql.NullString{String: "abc", Valid: true}, ToSqlStringNonEmpty("abc"))
	require.False(t, ToSqlString(nil).Valid)
	require.Nil(t, FromSqlStringPtr(sql.NullString{}))

	require.False(t, ToSqlPositiveFloat64(0).Valid)
	require.False(t, ToSqlPositiveFloat64(-1).Valid)
	w := FromSqlFloat64Ptr(ToSqlPositiveFloat64(16))
	require.NotNil(t, w)
	require.Equal(t, 16.0, *w)

	require.Nil(t, FromSqlTime(sql.NullTime{}))
	now := time.Now()
	require.Equal(t, now, *FromSqlTime(sql.NullTime{Time: now, Valid: true}))
}

func TestRawMessageConverters(t *testing.T) {
	require.False(t, ToNullRawMessage(nil).Valid)
	require.Nil(t, FromNullRawMessage(ToNullRawMessage([]byte{})))

	doc := json.RawMessage(`{"video_id":"abc"}`)
	require.JSONEq(t, string(doc), string(FromNullRawMessage(ToNullRawMessage(doc))))
}
