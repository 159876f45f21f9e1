package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"streamshare/backend/internal/domain"
)

// MessageType 定义 WebSocket 消息类型
type MessageType string

const (
	MessageTypeCodeReady MessageType = "code_ready"
	MessageTypePing      MessageType = "ping"
	MessageTypePong      MessageType = "pong"
)

// Message 定义 WebSocket 消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// 写超时与心跳参数
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client 代表一个 WebSocket 客户端连接
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]bool
	hub    *Hub
}

// Hub 管理所有 WebSocket 连接。
//
// 客户端按主题订阅，主题键为 "账号ID:用途"；验证码落库后
// 由 NotifyCodeReady 推送给订阅了该主题的连接。
type Hub struct {
	mu             sync.RWMutex
	clients        map[string]*Client
	topics         map[string]map[string]*Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *topicMessage
	allowedOrigins []string
	upgrader       websocket.Upgrader
	log            *zap.Logger
}

type topicMessage struct {
	topic   string
	payload []byte
}

// NewHub 创建 WebSocket Hub。
func NewHub(allowedOrigins []string, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}

	h := &Hub{
		clients:        make(map[string]*Client),
		topics:         make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *topicMessage, 256),
		allowedOrigins: allowedOrigins,
		log:            log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin 校验 WebSocket 握手的 Origin。
func (h *Hub) checkOrigin(r *http.Request) bool {
	for _, origin := range h.allowedOrigins {
		if origin == "*" {
			return true
		}
	}

	requestOrigin := r.Header.Get("Origin")
	if requestOrigin == "" {
		// 无 Origin 视为同源请求
		return true
	}
	for _, origin := range h.allowedOrigins {
		if requestOrigin == origin {
			return true
		}
	}
	return false
}

// Run 启动 Hub 的注册与广播循环，直到 ctx 取消。
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.log.Info("websocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			for topic := range client.topics {
				if h.topics[topic] == nil {
					h.topics[topic] = make(map[string]*Client)
				}
				h.topics[topic][client.id] = client
			}
			h.mu.Unlock()
			h.log.Debug("websocket client registered", zap.String("id", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				for topic := range client.topics {
					if members := h.topics[topic]; members != nil {
						delete(members, client.id)
						if len(members) == 0 {
							delete(h.topics, topic)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.topics[msg.topic] {
				select {
				case client.send <- msg.payload:
				default:
					// 发送缓冲打满的连接直接放弃本条
				}
			}
			h.mu.RUnlock()
		}
	}
}

// closeAll 关闭全部连接。
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		_ = client.conn.Close()
		delete(h.clients, id)
	}
	h.topics = make(map[string]map[string]*Client)
}

// NotifyCodeReady 向订阅者推送验证码就绪事件。
func (h *Hub) NotifyCodeReady(accountID string, purpose domain.CodePurpose, record *domain.VerificationCode) {
	data, err := json.Marshal(record)
	if err != nil {
		h.log.Warn("failed to marshal code record", zap.Error(err))
		return
	}

	topic := accountID + ":" + string(purpose)
	msg := Message{
		Type:      MessageTypeCodeReady,
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- &topicMessage{topic: topic, payload: payload}:
	default:
		h.log.Warn("websocket broadcast queue full, dropping code_ready event")
	}
}

// ServeWS 升级 HTTP 连接并订阅给定主题。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topics []string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan []byte, 32),
		topics: make(map[string]bool, len(topics)),
		hub:    h,
	}
	for _, t := range topics {
		client.topics[t] = true
	}

	h.register <- client
	go client.writePump()
	go client.readPump()
	return nil
}

// readPump 消费客户端消息并维持 pong 活性。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump 向客户端写消息并周期发送 ping。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
