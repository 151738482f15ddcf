package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
)

func TestEventEncoding(t *testing.T) {
	event := models.AnalysisCompletedEvent{
		ID:           "evt-1",
		CaseID:       "case-1",
		AnalysisType: models.AnalysisPneumonia,
		Diagnosis:    "Pneumonia",
		Probability:  0.92,
		Timestamp:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	msg, err := encodeEvent(event)
	require.NoError(t, err)
	assert.Equal(t, []byte("case-1"), msg.Key)

	got, err := decodeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, event.CaseID, got.CaseID)
	assert.True(t, event.Timestamp.Equal(got.Timestamp))
}

func TestDecodeRejectsForeignEvents(t *testing.T) {
	_, err := decodeEvent(kafka.Message{
		Value:   []byte(`{"case_id":"x"}`),
		Headers: []kafka.Header{{Key: "event-type", Value: []byte("ingest.accepted")}},
	})
	assert.Error(t, err)

	_, err = decodeEvent(kafka.Message{Value: []byte(`{}`)})
	assert.Error(t, err)

	_, err = decodeEvent(kafka.Message{Value: []byte(`not json`)})
	assert.Error(t, err)
}
