package handler

import (
	"net/http"
	"sync"
	"time"

	"healthtrack-go/internal/service"
	"healthtrack-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

const writeWait = 10 * time.Second

// wsClient 是一个连接；gorilla/websocket 不允许并发写，写操作由 mu 串行化。
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// NotificationHandler 维护用户的 WebSocket 连接，并推送评估完成事件。
// 它实现了 service.Notifier。
type NotificationHandler struct {
	userService service.UserService

	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
}

// NewNotificationHandler 创建一个新的 NotificationHandler。
func NewNotificationHandler(userService service.UserService) *NotificationHandler {
	return &NotificationHandler{
		userService: userService,
		clients:     make(map[string]map[*wsClient]struct{}),
	}
}

// Handle 处理 GET /ws/:token，校验 token 后升级为 WebSocket 连接。
func (h *NotificationHandler) Handle(c *gin.Context) {
	current, _, err := h.userService.Authenticate(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	client := &wsClient{conn: conn}
	userID := current.User.ID
	h.register(userID, client)
	defer func() {
		h.unregister(userID, client)
		conn.Close()
	}()

	log.Infof("WebSocket 连接已建立，用户: %s", current.User.Username)

	// 客户端不发送业务消息，读循环只用于感知断开
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}
	}
}

func (h *NotificationHandler) register(userID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*wsClient]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *NotificationHandler) unregister(userID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Connections 返回某个用户当前的连接数。
func (h *NotificationHandler) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// NotifyAssessmentReady 向用户的所有连接推送事件，失败只记录日志。
func (h *NotificationHandler) NotifyAssessmentReady(userID string, event service.AssessmentReadyEvent) {
	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.writeJSON(event); err != nil {
			log.Warnf("推送评估通知失败, user: %s, error: %v", userID, err)
		}
	}
}
