package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws: upgrade error")
		return
	}

	client := &wsClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	clientCount := len(s.clients)
	s.mu.Unlock()

	log.Info().Str("remote", r.RemoteAddr).Int("clients", clientCount).Msg("ws: client connected")

	go s.readUntilClosed(client)
}

// readUntilClosed drains control frames; the feed is one-way.
func (s *Server) readUntilClosed(client *wsClient) {
	defer s.dropClient(client)

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("ws: read error")
			}
			return
		}
	}
}

func (s *Server) dropClient(client *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[client]
	delete(s.clients, client)
	clientCount := len(s.clients)
	s.mu.Unlock()

	if ok {
		client.conn.Close()
		log.Info().Int("clients", clientCount).Msg("ws: client disconnected")
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	for c := range clients {
		c.conn.Close()
	}
}

// forwardEvents relays every configured topic to all websocket clients until
// ctx is done.
func (s *Server) forwardEvents(ctx context.Context) {
	if s.cfg.Events == nil {
		return
	}

	var wg sync.WaitGroup
	for _, topic := range s.cfg.Topics {
		ch, unsubscribe := s.cfg.Events.Subscribe(topic)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					s.broadcast(msg)
				}
			}
		}()
	}
	wg.Wait()
}

func (s *Server) broadcast(payload any) {
	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(payload); err != nil {
			log.Warn().Err(err).Msg("ws: removing client due to write error")
			s.dropClient(c)
		}
	}
}
