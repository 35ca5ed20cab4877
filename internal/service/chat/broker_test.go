package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"studyhub_server/internal/config"
	"studyhub_server/internal/dto/respond"
)

func localConn(hub *Hub, userId, groupId string) *UserConn {
	c := &UserConn{UserId: userId, GroupId: groupId, SendBack: make(chan []byte, 4), hub: hub}
	hub.Register(c)
	return c
}

func decodeEvent(t *testing.T, data []byte) GroupEvent {
	t.Helper()
	var ev GroupEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHubBroadcastOnlyToGroup(t *testing.T) {
	hub := NewHub()
	a := localConn(hub, "U1", "G1")
	b := localConn(hub, "U2", "G2")

	hub.Broadcast(GroupEvent{Type: EventMessageCreated, GroupId: "G1", Message: &respond.MessageRespond{Id: "M1"}})

	ev := decodeEvent(t, <-a.SendBack)
	require.Equal(t, EventMessageCreated, ev.Type)
	require.Equal(t, "M1", ev.Message.Id)
	require.Empty(t, b.SendBack)
}

func TestHubDropsLeavingMember(t *testing.T) {
	hub := NewHub()
	leaver := localConn(hub, "U1", "G1")
	stayer := localConn(hub, "U2", "G1")

	hub.Broadcast(GroupEvent{Type: EventMemberLeft, GroupId: "G1", UserId: "U1"})

	require.Equal(t, 1, hub.ClientCount("G1"))
	_, ok := <-leaver.SendBack
	require.True(t, ok, "leaver still receives the event")
	_, ok = <-leaver.SendBack
	require.False(t, ok, "channel closed afterwards")
	require.Len(t, stayer.SendBack, 1)
}

func TestHubGroupDeletedDisconnectsEveryone(t *testing.T) {
	hub := NewHub()
	localConn(hub, "U1", "G1")
	localConn(hub, "U2", "G1")

	hub.Broadcast(GroupEvent{Type: EventGroupDeleted, GroupId: "G1"})
	require.Equal(t, 0, hub.ClientCount("G1"))
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	c := &UserConn{UserId: "U1", GroupId: "G1", SendBack: make(chan []byte), hub: hub}
	hub.Register(c)

	hub.Broadcast(GroupEvent{Type: EventMessageCreated, GroupId: "G1"})
	require.Equal(t, 0, hub.ClientCount("G1"))

	// 重复注销不会 panic
	hub.Unregister(c)
}

func TestHubServeWebsocket(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, hub.Serve(w, r, "U1", "G1"))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount("G1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(GroupEvent{Type: EventMessageCreated, GroupId: "G1", Message: &respond.MessageRespond{Id: "M9"}})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "M9", decodeEvent(t, data).Message.Id)

	hub.Broadcast(GroupEvent{Type: EventGroupDeleted, GroupId: "G1"})
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}

func TestChannelBroker(t *testing.T) {
	hub := NewHub()
	c := localConn(hub, "U1", "G1")
	broker := NewChannelBroker(hub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- broker.Start(ctx) }()

	require.NoError(t, broker.Publish(ctx, GroupEvent{Type: EventMessagesEvicted, GroupId: "G1", MessageIds: []string{"M1"}}))
	select {
	case data := <-c.SendBack:
		require.Equal(t, []string{"M1"}, decodeEvent(t, data).MessageIds)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, broker.Close())
	require.ErrorIs(t, broker.Publish(context.Background(), GroupEvent{GroupId: "G1"}), ErrBrokerClosed)
}

func TestChannelBrokerFullDoesNotBlock(t *testing.T) {
	broker := NewChannelBroker(NewHub())
	for i := 0; i < cap(broker.Transmit); i++ {
		require.NoError(t, broker.Publish(context.Background(), GroupEvent{GroupId: "G1"}))
	}
	require.ErrorIs(t, broker.Publish(context.Background(), GroupEvent{GroupId: "G1"}), errTransmitFull)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs chan kafka.Message
	errs chan error
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case err := <-r.errs:
		return kafka.Message{}, err
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error { return nil }

func TestKafkaBrokerRoundTrip(t *testing.T) {
	hub := NewHub()
	c := localConn(hub, "U1", "G1")
	writer := &fakeWriter{}
	reader := &fakeReader{msgs: make(chan kafka.Message, 4), errs: make(chan error, 1)}
	broker := &KafkaBroker{Producer: writer, Consumer: reader, hub: hub, retryDelay: time.Millisecond}

	require.NoError(t, broker.Publish(context.Background(), GroupEvent{Type: EventMessageCreated, GroupId: "G1"}))
	require.Len(t, writer.msgs, 1)
	require.Equal(t, "G1", string(writer.msgs[0].Key))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- broker.Start(ctx) }()

	// 读失败和坏数据都不会让消费循环退出
	reader.errs <- errors.New("leader not available")
	reader.msgs <- kafka.Message{Value: []byte("{not json")}
	reader.msgs <- writer.msgs[0]

	select {
	case data := <-c.SendBack:
		require.Equal(t, EventMessageCreated, decodeEvent(t, data).Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	cancel()
	require.NoError(t, <-done)
	require.NoError(t, broker.Close())
}

func TestNewMessageBroker(t *testing.T) {
	hub := NewHub()

	b, err := NewMessageBroker(config.KafkaConfig{}, hub)
	require.NoError(t, err)
	require.IsType(t, &ChannelBroker{}, b)

	_, err = NewMessageBroker(config.KafkaConfig{MessageMode: "kafka"}, hub)
	require.Error(t, err)

	b, err = NewMessageBroker(config.KafkaConfig{MessageMode: "kafka", HostPort: "localhost:9092", ChatTopic: "t", Timeout: time.Second}, hub)
	require.NoError(t, err)
	require.IsType(t, &KafkaBroker{}, b)
	_ = b.Close()

	_, err = NewMessageBroker(config.KafkaConfig{MessageMode: "zmq"}, hub)
	require.Error(t, err)
}

type recordingPublisher struct {
	events []GroupEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev GroupEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func TestNotify(t *testing.T) {
	Notify(context.Background(), nil, GroupEvent{GroupId: "G1"})

	p := &recordingPublisher{err: errors.New("down")}
	Notify(context.Background(), p, GroupEvent{GroupId: "G1"})
	require.Len(t, p.events, 1)
	require.False(t, p.events[0].At.IsZero())
}
