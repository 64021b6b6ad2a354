package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Record(ctx context.Context, s Summary) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(subj string, data []byte) error {
	args := m.Called(subj, data)
	return args.Error(0)
}

func TestDispatcherFansOut(t *testing.T) {
	s := Summary{ID: uuid.New(), RoomCode: "ABCDEF"}

	first := new(mockSink)
	second := new(mockSink)
	first.On("Record", mock.Anything, s).Return(errors.New("redis down")).Once()
	second.On("Record", mock.Anything, s).Return(nil).Once()

	d := NewDispatcher(nil, first, second)
	d.Publish(s)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestDispatcherPublishDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	slow := SinkFunc(func(ctx context.Context, s Summary) error {
		<-release
		return nil
	})

	d := NewDispatcher(nil, slow)
	start := time.Now()
	d.Publish(Summary{RoomCode: "SLOWLY"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcherIgnoresAfterClose(t *testing.T) {
	sink := new(mockSink)
	d := NewDispatcher(nil, sink)
	require.NoError(t, d.Close(context.Background()))

	d.Publish(Summary{RoomCode: "CLOSED"})
	sink.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestNATSPublisher(t *testing.T) {
	pub := new(mockPublisher)
	s := Summary{ID: uuid.New(), RoomCode: "NATSRM", Winner: "alice"}

	pub.On("Publish", DefaultSubject, mock.MatchedBy(func(data []byte) bool {
		var got Summary
		if err := json.Unmarshal(data, &got); err != nil {
			return false
		}
		return got.RoomCode == "NATSRM" && got.Winner == "alice"
	})).Return(nil).Once()

	p := NewNATSPublisher(pub, "")
	require.NoError(t, p.Record(context.Background(), s))
	pub.AssertExpectations(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Record(ctx, s), context.Canceled)
}
