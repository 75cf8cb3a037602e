package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nutrigraph/nutribot/backend/internal/model/chat"
)

const writeTimeout = 10 * time.Second

// outgoingMessage is every frame sent to the browser.
type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// peer is one browser connection. Writes are serialised because the
// conversation client calls back from the submitting goroutine.
type peer struct {
	sessionID string
	conn      *websocket.Conn
	mu        sync.Mutex
}

func newPeer(sessionID string, conn *websocket.Conn) *peer {
	return &peer{sessionID: sessionID, conn: conn}
}

func (p *peer) send(msgType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write(msgType, data)
}

// write must be called with p.mu held.
func (p *peer) write(msgType string, data any) error {
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: p.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (p *peer) ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (p *peer) close() error {
	return p.conn.Close()
}

// AppendMessage forwards a transcript entry to the browser.
func (p *peer) AppendMessage(msg chat.Message) {
	_ = p.send(TypeMessage, msg)
}

// SetPending toggles the typing indicator in the browser.
func (p *peer) SetPending(pending bool) {
	_ = p.send(TypePending, map[string]bool{"pending": pending})
}

// ConnectionManager WebSocket连接管理器，每个会话只保留最新的连接
type ConnectionManager struct {
	connections map[string]*peer
	mu          sync.RWMutex
}

// NewConnectionManager 创建连接管理器
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*peer),
	}
}

// add registers p and closes any older connection of the same session.
func (cm *ConnectionManager) add(p *peer) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if old, exists := cm.connections[p.sessionID]; exists && old != p {
		_ = old.close()
	}
	cm.connections[p.sessionID] = p
}

// remove drops p unless a newer connection already replaced it.
func (cm *ConnectionManager) remove(p *peer) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if current, exists := cm.connections[p.sessionID]; exists && current == p {
		delete(cm.connections, p.sessionID)
	}
}

// Count 返回当前活跃连接数
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// CloseAll 关闭所有连接
func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for sessionID, p := range cm.connections {
		_ = p.close()
		delete(cm.connections, sessionID)
	}
}
