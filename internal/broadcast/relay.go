package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Frame is one relayed message: the topic it arrived on plus the raw JSON
// payload.
type Frame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Relay subscribes to the broadcast topics and fans frames out to connected
// websocket clients. Slow clients are dropped rather than backing up the
// fan-out.
type Relay struct {
	client   *redis.Client
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]chan Frame
}

// NewRelay creates a relay on the given Redis connection.
func NewRelay(client *redis.Client) *Relay {
	return &Relay{
		client: client,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Local relay only; origin policy is the deployment's concern.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: map[*websocket.Conn]chan Frame{},
	}
}

// Run subscribes to both topics and pumps frames until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, TopicSignals, TopicProphecies)
	defer sub.Close()

	ch := sub.Channel()
	log.Info().Strs("topics", []string{TopicSignals, TopicProphecies}).Msg("Relay subscribed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.fanOut(Frame{Topic: msg.Channel, Payload: json.RawMessage(msg.Payload)})
		}
	}
}

func (r *Relay) fanOut(frame Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn, ch := range r.conns {
		select {
		case ch <- frame:
		default:
			log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("Dropping slow relay client")
			delete(r.conns, conn)
			close(ch)
		}
	}
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	ch := make(chan Frame, 64)
	r.mu.Lock()
	r.conns[conn] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if _, ok := r.conns[conn]; ok {
			delete(r.conns, conn)
			close(ch)
		}
		r.mu.Unlock()
		conn.Close()
	}()

	// Reader goroutine drains control frames and signals disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}
