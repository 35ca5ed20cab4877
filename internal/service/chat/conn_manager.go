// conn_manager.go
// 核心职责：WebSocket 连接生命周期管理
// 1. 建立 WebSocket 连接 (Upgrade)，按小组登记
// 2. 每个连接一个读协程（只处理心跳和断开）和一个写协程
// 3. 把代理送来的事件推给小组内的本机连接
package chat

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"studyhub_server/pkg/constants"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	// 跨域由 cors 中间件和 JWT 控制
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// UserConn 一个 websocket 连接
type UserConn struct {
	Conn     *websocket.Conn
	UserId   string
	GroupId  string
	SendBack chan []byte // 给前端

	hub       *Hub
	closeOnce sync.Once
}

// Hub 本机在线连接，按小组分组
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*UserConn]struct{}
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[*UserConn]struct{})}
}

// Serve 升级连接并登记，之后由读写协程接管
// 调用方负责在此之前完成鉴权和成员校验
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userId, groupId string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &UserConn{
		Conn:     conn,
		UserId:   userId,
		GroupId:  groupId,
		SendBack: make(chan []byte, constants.CHANNEL_SIZE),
		hub:      h,
	}
	h.Register(client)
	go client.Write()
	go client.Read()
	zap.L().Info("ws connected", zap.String("user_id", userId), zap.String("group_id", groupId))
	return nil
}

// Register 登记连接
func (h *Hub) Register(c *UserConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.groups[c.GroupId]
	if !ok {
		set = make(map[*UserConn]struct{})
		h.groups[c.GroupId] = set
	}
	set[c] = struct{}{}
}

// Unregister 注销连接并关闭发送通道，可重复调用
// 关闭发送通道与 Broadcast 的发送共用同一把锁
func (h *Hub) Unregister(c *UserConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.groups[c.GroupId]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.groups, c.GroupId)
		}
	}
	c.closeOnce.Do(func() { close(c.SendBack) })
}

// ClientCount 小组在本机的在线连接数
func (h *Hub) ClientCount(groupId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupId])
}

// Broadcast 把事件推给小组的本机连接
// 发送缓冲已满的连接视为掉线直接断开；成员退出或小组解散时断开相应连接
func (h *Hub) Broadcast(event GroupEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		zap.L().Error("encode group event failed", zap.Error(err))
		return
	}

	var drop []*UserConn
	h.mu.RLock()
	for c := range h.groups[event.GroupId] {
		select {
		case c.SendBack <- data:
		default:
			drop = append(drop, c)
			continue
		}
		switch {
		case event.Type == EventGroupDeleted:
			drop = append(drop, c)
		case event.Type == EventMemberLeft && c.UserId == event.UserId:
			drop = append(drop, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range drop {
		h.Unregister(c)
	}
}

// CloseAll 关闭全部连接，进程退出时调用
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*UserConn
	for _, set := range h.groups {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.Unregister(c)
	}
}

// Read 读协程：客户端只通过 HTTP 发消息，这里丢弃入站数据，只维持心跳
func (c *UserConn) Read() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxInboundSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Warn("ws read failed", zap.String("user_id", c.UserId), zap.Error(err))
			}
			return
		}
	}
}

// Write 写协程：SendBack 关闭后发送 close 帧并退出
func (c *UserConn) Write() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.SendBack:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				zap.L().Warn("ws write failed", zap.String("user_id", c.UserId), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
