package mqtt

import (
	"net"
	"testing"

	"whois/internal/config"
	"whois/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ events.MessagePublisher = (*Client)(nil)

func TestNewClient_BrokerUnreachable(t *testing.T) {
	// 占用一个端口后立即释放，确保没有服务在监听
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	client, err := NewClient(&config.MQTTConfig{
		Broker:   "tcp://" + addr,
		ClientID: "whois-test",
	})
	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to MQTT broker")
}
