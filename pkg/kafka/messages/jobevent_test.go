package messages

import (
	"testing"

	"github.com/ava-labs/logwindow/pkg/slidingwindow"
	"github.com/stretchr/testify/require"
)

func TestJobEvent_RoundTripsRecord(t *testing.T) {
	t.Parallel()

	rec := slidingwindow.Record{Counter: 7, StartLine: 12, EndLine: 14, Identity: "id-7", Stdout: "a\nb"}
	ev := NewJobEvent("job-1", rec)

	data, err := ev.Marshal()
	require.NoError(t, err)
	require.JSONEq(t,
		`{"jobId":"job-1","counter":7,"startLine":12,"endLine":14,"uuid":"id-7","stdout":"a\nb"}`,
		string(data))

	var decoded JobEvent
	require.NoError(t, decoded.Unmarshal(data))
	require.Equal(t, rec, decoded.Record())
}

func TestJobEvent_Unmarshal_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "missing job id", data: `{"counter":1,"startLine":0,"endLine":1}`, wantErr: ErrJobIDRequired},
		{name: "zero counter", data: `{"jobId":"j","counter":0}`, wantErr: ErrInvalidCounter},
		{name: "inverted span", data: `{"jobId":"j","counter":1,"startLine":4,"endLine":2}`, wantErr: ErrInvalidSpan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var ev JobEvent
			require.ErrorIs(t, ev.Unmarshal([]byte(tt.data)), tt.wantErr)
		})
	}

	var ev JobEvent
	require.Error(t, ev.Unmarshal([]byte("{not json")))
}
