package shipper

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/tempslope/tempslope/agent/internal/config"
	"github.com/tempslope/tempslope/pkg/types"
)

// startBroker runs an in-process MQTT broker on a free loopback port.
func startBroker(t *testing.T) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := lis.Addr().String()
	lis.Close()

	broker := mochi.New(nil)
	if err := broker.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("add hook: %v", err)
	}
	if err := broker.AddListener(listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		ID:      "test",
		Address: addr,
	})); err != nil {
		t.Fatalf("add listener: %v", err)
	}
	if err := broker.Serve(); err != nil {
		t.Fatalf("serve: %v", err)
	}
	t.Cleanup(func() { broker.Close() })
	return addr
}

// subscribe connects a plain paho client and forwards every publish on filter.
func subscribe(ctx context.Context, t *testing.T, addr, filter string) <-chan *paho.Publish {
	t.Helper()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		t.Fatalf("dial broker: %v", err)
	}
	got := make(chan *paho.Publish, 4)
	c := paho.NewClient(paho.ClientConfig{
		ClientID: "dashboard",
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				got <- pr.Packet
				return true, nil
			},
		},
	})
	if _, err := c.Connect(ctx, &paho.Connect{ClientID: "dashboard", KeepAlive: 5, CleanStart: true}); err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Disconnect(&paho.Disconnect{}) })

	if _, err := c.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: 1}},
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return got
}

func TestMQTTTransport_RetainedOnBroker(t *testing.T) {
	addr := startBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tr, err := dialMQTT(ctx, config.MQTTConfig{
		Broker:      addr,
		TopicPrefix: "brewery",
		ClientID:    "agent-test",
		QoS:         1,
	})
	if err != nil {
		t.Fatalf("dialMQTT: %v", err)
	}
	snap := &types.Snapshot{SensorID: "beer", State: types.StateRising, Temperature: 19.5, SlopePerHour: 0.75}
	if err := tr.Send(ctx, snap); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	// A subscriber arriving after the publish still gets the latest state.
	got := subscribe(ctx, t, addr, "brewery/+/snapshot")
	select {
	case p := <-got:
		if p.Topic != "brewery/beer/snapshot" {
			t.Errorf("topic: got %q", p.Topic)
		}
		if !p.Retain {
			t.Error("retain flag: got false, want true")
		}
		var out types.Snapshot
		if err := json.Unmarshal(p.Payload, &out); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if out.SensorID != "beer" || out.SlopePerHour != 0.75 {
			t.Errorf("payload: got %+v", out)
		}
	case <-ctx.Done():
		t.Fatal("retained snapshot not delivered")
	}
}

func TestDialMQTT_BrokerDown(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := lis.Addr().String()
	lis.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := dialMQTT(ctx, config.MQTTConfig{Broker: addr}); err == nil {
		t.Fatal("expected dial error, got nil")
	}
}
