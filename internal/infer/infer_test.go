package infer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inferFresh(t *testing.T, v string) SQLType {
	t.Helper()
	got, ok := InferString(v, Bit, 0)
	require.True(t, ok, "no classifier accepted %q", v)
	return got
}

func TestInfer_Classification(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "BIT"},
		{"1", "BIT"},
		{"00", "BIT"},
		{"01", "BIT"},
		{"001", "BIT"},
		{" 1 ", "BIT"},
		{"2", "TINYINT"},
		{"255", "TINYINT"},
		{"256", "SMALLINT"},
		{"-5", "SMALLINT"},
		{"-1000", "SMALLINT"},
		{"-1000000", "INT"},
		{"9000000000", "BIGINT"},
		{"0123", "CHAR(4)"},
		{"-0123", "CHAR(5)"},
		{"123.45678", "NUMERIC(8, 5)"},
		{"-1.5", "NUMERIC(2, 1)"},
		{"99999999999999999999", "NUMERIC(20)"},
		{"0.5", "FLOAT(24)"},
		{"1.5e10", "FLOAT(24)"},
		{"1e300", "FLOAT(53)"},
		{"1e-300", "FLOAT(53)"},
		{"0e0", "FLOAT(53)"},
		{"NaN", "CHAR(3)"},
		{"inf", "CHAR(3)"},
		{"2023-01-15", "DATE"},
		{"1/15/2023", "DATE"},
		{"2023.1.5", "DATE"},
		{"Jan 5, 2023", "DATE"},
		{"5 january 2023", "DATE"},
		{"2024-02-29", "DATE"},
		{"2023-02-29", "CHAR(10)"},
		{"13:45", "TIME(0)"},
		{"1:30 pm", "TIME(0)"},
		{"1:30:15.5AM", "TIME(1)"},
		{"25:00", "CHAR(5)"},
		{"2004-05-07T09:38:01", "DATETIME2(0)"},
		{"2002-11-09T07:18:21Z", "DATETIME2(0)"},
		{"2023-01-15 13:45:00.12", "DATETIME2(2)"},
		{"March 3, 2021 4:05 PM", "DATETIME2(0)"},
		{"2002-11-09T07:18:21+05:00", "DATETIMEOFFSET(0)"},
		{"2023-01-15 13:45:00.12345 -03:30", "DATETIMEOFFSET(5)"},
		{"hello", "CHAR(5)"},
		{strings.Repeat("x", 8000), "CHAR(8000)"},
		{strings.Repeat("x", 8001), "VARCHAR(MAX)"},
	}

	for _, tt := range tests {
		name := tt.in
		if len(name) > 32 {
			name = name[:32]
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferFresh(t, tt.in).String())
		})
	}
}

func TestInfer_Empty(t *testing.T) {
	got, ok := Infer(nil, Date, 4)
	require.True(t, ok)
	assert.True(t, got.Empty())
	assert.Equal(t, SQLType{}, got)

	col := Fold(got, got, got)
	assert.Equal(t, "BIT", col.String())
}

func TestInfer_TimePrecision(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"01:00:00.012", 3},
		{"01:00:00.0", 0},
		{"01:00:00.012345678", 7},
		{"01:00:00", 0},
		{"01:00:00.1200", 2},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := inferFresh(t, tt.in)
			assert.Equal(t, Time, got.Kind)
			assert.Equal(t, tt.want, got.Size)
		})
	}
}

func TestInfer_ResumeSkipsStricterKinds(t *testing.T) {
	got, ok := InferString("1", Smallint, 0)
	require.True(t, ok)
	assert.Equal(t, Smallint, got.Kind)

	got, ok = InferString("12", Time, 0)
	require.True(t, ok)
	assert.Equal(t, "CHAR(2)", got.String(), "bare small integers are never times")

	_, ok = InferString("short", Varcharmax, 0)
	assert.False(t, ok, "short values do not fit the VARCHAR(MAX) classifier")
}

func TestInfer_SubindexWrapsAround(t *testing.T) {
	got, ok := InferString("Jan 5, 2023", Date, 10)
	require.True(t, ok)
	assert.Equal(t, Date, got.Kind)
	assert.Equal(t, 3, got.Subindex)

	got, ok = InferString("2023-01-05", Date, 3)
	require.True(t, ok)
	assert.Equal(t, 0, got.Subindex)

	got, ok = InferString("2023-01-05", Date, 99)
	require.True(t, ok)
	assert.Equal(t, 0, got.Subindex, "out of range hints restart at the first variant")
}

func TestInfer_DatetimeoffsetFallback(t *testing.T) {
	got, ok := InferString("2004-05-07 09:38:01.25", Datetimeoffset, 0)
	require.True(t, ok)
	assert.Equal(t, "DATETIMEOFFSET(2)", got.String())

	got, ok = InferString("2002-11-09T07:18:21Z", Datetimeoffset, 0)
	require.True(t, ok)
	assert.Equal(t, Datetimeoffset, got.Kind)
}

func TestInfer_Datetime2AcceptsDatesAndTimes(t *testing.T) {
	got, ok := InferString("2023-01-15", Datetime2, 0)
	require.True(t, ok)
	assert.Equal(t, "DATETIME2(0)", got.String())

	got, ok = InferString("10:15:00.5", Datetime2, 0)
	require.True(t, ok)
	assert.Equal(t, "DATETIME2(1)", got.String())
}

func TestSQLType_String(t *testing.T) {
	tests := []struct {
		in   SQLType
		want string
	}{
		{SQLType{}, "BIT"},
		{SQLType{Kind: Bigint}, "BIGINT"},
		{SQLType{Kind: Numeric, Size: 3, Scale: 5}, "NUMERIC(8, 5)"},
		{SQLType{Kind: Numeric, Size: 4}, "NUMERIC(4)"},
		{SQLType{Kind: Real, Size: 24}, "FLOAT(24)"},
		{SQLType{Kind: Float, Size: 53}, "FLOAT(53)"},
		{SQLType{Kind: Date}, "DATE"},
		{SQLType{Kind: Time}, "TIME(0)"},
		{SQLType{Kind: Datetime2, Size: 2}, "DATETIME2(2)"},
		{SQLType{Kind: Datetimeoffset, Size: 5}, "DATETIMEOFFSET(5)"},
		{SQLType{Kind: Char, Size: 7}, "CHAR(7)"},
		{SQLType{Kind: Varchar, Size: 5}, "VARCHAR(5)"},
		{SQLType{Kind: Varcharmax, Size: 9000}, "VARCHAR(MAX)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.String())
	}
	assert.Equal(t, "Kind(42)", Kind(42).String())
}
