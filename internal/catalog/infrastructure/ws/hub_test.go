package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	"github.com/dmehra2102/pos-order-engine/pkg/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHubBroadcastsToStations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logging.Discard())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	srv := httptest.NewServer(hub)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(domain.Notice{Type: domain.NoticeStockChanged, ProductIDs: []domain.ProductID{1, 2}})
	for _, conn := range conns {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var n domain.Notice
		require.NoError(t, conn.ReadJSON(&n))
		assert.Equal(t, domain.NoticeStockChanged, n.Type)
		assert.Equal(t, []domain.ProductID{1, 2}, n.ProductIDs)
	}

	require.NoError(t, conns[0].Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-hubDone
	_ = conns[1].SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conns[1].ReadMessage()
	assert.Error(t, err)
	_ = conns[1].Close()
	srv.Close()
}
