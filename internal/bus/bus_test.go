package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (r *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func (r *recordingWriter) Close() error {
	r.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisher(w)

	ev := NewEvent(TypeCrisisDetected, "user-1", map[string]string{"severity": "high"})
	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("user-1"), msg.Key)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(TypeCrisisDetected), msg.Headers[0].Value)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.ID, decoded["id"])
	assert.Equal(t, "high", decoded["payload"].(map[string]interface{})["severity"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_EmptyBatch(t *testing.T) {
	w := &recordingWriter{err: errors.New("should not be called")}
	assert.NoError(t, NewKafkaPublisher(w).Publish(context.Background()))
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	err := NewKafkaPublisher(w).Publish(context.Background(), NewEvent(TypeSelectionMade, "u", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestKafkaPublisher_UnmarshalablePayload(t *testing.T) {
	w := &recordingWriter{}
	err := NewKafkaPublisher(w).Publish(context.Background(), NewEvent(TypeSelectionMade, "u", make(chan int)))
	assert.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestNew(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(context.Background(), NewEvent(TypeWeightsUpdated, "", nil)))

	cfg := DefaultConfig()
	cfg.Enabled = true
	p, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, p)
	assert.NoError(t, p.Close())

	cfg.Brokers = nil
	_, err = New(cfg)
	assert.Error(t, err)
}
