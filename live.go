/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// LeaderboardUpdateMessage is pushed to spectators whenever a score lands.
type LeaderboardUpdateMessage struct {
	Type        string             `json:"type"` // "leaderboard_update"
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Stats       LeaderboardStats   `json:"stats"`
}

type liveClient struct {
	conn *websocket.Conn
	send chan any
}

// LiveHub fans leaderboard updates out to connected websocket spectators.
// Slow clients are dropped rather than allowed to stall the broadcast.
type LiveHub struct {
	clients map[*liveClient]bool

	register  chan *liveClient
	unreg     chan *liveClient
	broadcast chan any
}

func newLiveHub() *LiveHub {
	return &LiveHub{
		clients:   make(map[*liveClient]bool),
		register:  make(chan *liveClient),
		unreg:     make(chan *liveClient),
		broadcast: make(chan any, 8),
	}
}

func (h *LiveHub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Broadcast queues a message for every connected spectator without blocking
// the caller.
func (h *LiveHub) Broadcast(msg any) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveLiveLeaderboard(cfg *Config, hub *LiveHub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := liveUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &liveClient{
			conn: conn,
			send: make(chan any, 8),
		}

		hub.register <- client
		logf(cfg, "LIVE: Spectator connected from %s", realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

// readPump discards inbound frames; the feed is one-way, but reading is
// what notices a closed connection.
func (c *liveClient) readPump(h *LiveHub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *liveClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
