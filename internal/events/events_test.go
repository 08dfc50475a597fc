package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAccount() AccountEvent {
	return AccountEvent{
		Email:     "a@x.com",
		FirstName: "A",
		LastName:  "B",
		IsActive:  true,
		Updated:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func sampleDecision(d Decision) PresentationDecisionEvent {
	return PresentationDecisionEvent{
		PresenterName:  "Jo",
		PresenterEmail: "jo@x.com",
		Title:          "Talk",
		Decision:       d,
	}
}

// --- Round-trip ---

func TestEncodeDecode_AccountRoundTrip(t *testing.T) {
	original := sampleAccount()
	original.Updated = time.Date(2024, 3, 5, 10, 11, 12, 123456000, time.UTC)

	env, body, err := Encode(original)
	require.NoError(t, err)
	assert.Equal(t, KindAccountChanged, env.Kind)
	assert.Equal(t, SchemaVersion, env.Version)
	assert.NotEmpty(t, env.ID)

	msg, err := Decode(body, "")
	require.NoError(t, err)
	assert.False(t, msg.Legacy)
	assert.Equal(t, env.ID, msg.ID)

	decoded, ok := msg.Account()
	require.True(t, ok)
	assert.Equal(t, original, decoded)
}

func TestEncodeDecode_DecisionRoundTrip(t *testing.T) {
	for _, d := range []Decision{DecisionApproved, DecisionRejected} {
		t.Run(string(d), func(t *testing.T) {
			original := sampleDecision(d)

			_, body, err := Encode(original)
			require.NoError(t, err)

			msg, err := Decode(body, "")
			require.NoError(t, err)

			decoded, ok := msg.Decision()
			require.True(t, ok)
			assert.Equal(t, original, decoded)
			assert.Equal(t, original.Kind(), msg.Kind)
		})
	}
}

func TestEncode_DecisionNotSerialized(t *testing.T) {
	_, body, err := Encode(sampleDecision(DecisionApproved))
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Len(t, payload, 3)
	assert.Equal(t, "jo@x.com", payload["presenter_email"])
}

// --- Legacy bodies ---

func TestDecode_LegacyAccountNaiveTimestamp(t *testing.T) {
	body := []byte(`{"email":"a@x.com","first_name":"A","last_name":"B","is_active":true,"updated":"2024-01-01T00:00:00"}`)

	msg, err := Decode(body, KindAccountChanged)
	require.NoError(t, err)
	assert.True(t, msg.Legacy)

	ev, ok := msg.Account()
	require.True(t, ok)
	assert.Equal(t, sampleAccount(), ev)
}

func TestDecode_LegacyDecisionTakesKindFromFallback(t *testing.T) {
	body := []byte(`{"presenter_name":"Jo","presenter_email":"jo@x.com","title":"Talk"}`)

	msg, err := Decode(body, KindPresentationRejected)
	require.NoError(t, err)

	ev, ok := msg.Decision()
	require.True(t, ok)
	assert.Equal(t, DecisionRejected, ev.Decision)
}

func TestDecode_LegacyWithoutFallback(t *testing.T) {
	body := []byte(`{"presenter_name":"Jo","presenter_email":"jo@x.com","title":"Talk"}`)

	_, err := Decode(body, "")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

// --- Malformed ---

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind Kind
	}{
		{"not json", `{"email":`, KindAccountChanged},
		{"array", `[1,2,3]`, KindAccountChanged},
		{"missing key", `{"email":"a@x.com","first_name":"A","last_name":"B","updated":"2024-01-01T00:00:00"}`, KindAccountChanged},
		{"bad timestamp", `{"email":"a@x.com","first_name":"A","last_name":"B","is_active":true,"updated":"yesterday"}`, KindAccountChanged},
		{"bad email", `{"email":"nope","first_name":"A","last_name":"B","is_active":true,"updated":"2024-01-01T00:00:00"}`, KindAccountChanged},
		{"null", `null`, KindAccountChanged},
		{"missing title", `{"presenter_name":"Jo","presenter_email":"jo@x.com"}`, KindPresentationApproved},
		{"envelope without payload", `{"id":"1","type":"account.changed","version":1}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body), tt.kind)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	body := []byte(`{"id":"1","type":"account.exploded","version":1,"payload":{}}`)

	_, err := Decode(body, KindAccountChanged)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecode_UnsupportedVersion(t *testing.T) {
	body := []byte(`{"id":"1","type":"account.changed","version":2,"payload":{}}`)

	_, err := Decode(body, "")
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

// --- Validation ---

func TestEncode_RejectsInvalidEvents(t *testing.T) {
	noTimestamp := sampleAccount()
	noTimestamp.Updated = time.Time{}

	_, _, err := Encode(noTimestamp)
	assert.ErrorIs(t, err, ErrMalformed)

	noDecision := sampleDecision("")
	_, _, err = Encode(noDecision)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 1, 12, 30, 0, 500000000, time.UTC)

	for _, s := range []string{
		"2024-01-01T12:30:00.5Z",
		"2024-01-01T12:30:00.500000+00:00",
		"2024-01-01T12:30:00.500000",
		"2024-01-01 12:30:00.5",
	} {
		got, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), "%s: got %v", s, got)
	}

	_, err := ParseTimestamp("01/01/2024")
	assert.Error(t, err)
}
