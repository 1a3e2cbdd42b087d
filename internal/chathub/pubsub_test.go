package chathub_test

import (
	"context"
	"os"
	"testing"
	"time"

	"pawchat/backend/internal/chathub"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// TestRedisRelay_CrossNodeFanOut runs two relays against one Redis, as two server nodes would.
func TestRedisRelay_CrossNodeFanOut(t *testing.T) {
	rdb := startRedisContainer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeA := chathub.NewRedisRelay(chathub.NewHub(nil), rdb, nil)
	nodeB := chathub.NewRedisRelay(chathub.NewHub(nil), rdb, nil)
	for _, node := range []*chathub.RedisRelay{nodeA, nodeB} {
		go node.Hub.Run(ctx)
		go func(node *chathub.RedisRelay) { _ = node.Run(ctx) }(node)
		select {
		case <-node.Ready():
		case <-time.After(5 * time.Second):
			t.Fatal("relay did not subscribe")
		}
	}

	onB := &recorder{}
	nodeB.Subscribe("c1", onB.handle)
	other := &recorder{}
	nodeB.Subscribe("c2", other.handle)

	require.NoError(t, nodeA.Publish(ctx, event("c1", "m1")))
	require.NoError(t, nodeA.Publish(ctx, event("c1", "m2")))

	assert.Eventually(t, func() bool { return onB.count() == 2 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"m1", "m2"}, onB.messageIDs())
	assert.Equal(t, 0, other.count())
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "pawchat:conversation:abc", chathub.ChannelFor("abc"))
}
