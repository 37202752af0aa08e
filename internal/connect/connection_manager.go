package connect

import "sync"

// ConnectionManager 管理所有在线 WebSocket 连接。
// 维护两套索引：
// - byKey(user_uuid:conn_id) 用于精确定位单条连接；
// - byUser(user_uuid -> conn_id -> client) 用于按用户广播。
type ConnectionManager struct {
	mu       sync.RWMutex
	byKey    map[string]*Client
	byUser   map[string]map[string]*Client
	shutdown bool
}

// NewConnectionManager 创建连接管理器实例。
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byKey:  make(map[string]*Client),
		byUser: make(map[string]map[string]*Client),
	}
}

// Register 注册一条连接。
// 返回 replaced 表示被同键新连接替换掉的旧连接（如果存在），调用方应主动关闭它。
// conn_id 由服务端生成，正常情况下不会撞键，replaced 是并发兜底。
func (m *ConnectionManager) Register(client *Client) (replaced *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil
	}

	key := client.Key()
	if old, ok := m.byKey[key]; ok && old != client {
		replaced = old
	}

	m.byKey[key] = client
	userConns, ok := m.byUser[client.UserUUID()]
	if !ok {
		userConns = make(map[string]*Client)
		m.byUser[client.UserUUID()] = userConns
	}
	userConns[client.ConnID()] = client
	return replaced
}

// Unregister 注销一条连接。
// 只有当 map 中当前连接与入参完全一致时才删除，防止并发替换时误删新连接。
func (m *ConnectionManager) Unregister(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := client.Key()
	current, ok := m.byKey[key]
	if !ok || current != client {
		return
	}

	delete(m.byKey, key)
	if userConns, ok := m.byUser[client.UserUUID()]; ok {
		delete(userConns, client.ConnID())
		if len(userConns) == 0 {
			delete(m.byUser, client.UserUUID())
		}
	}
}

// SendToUser 向用户的所有在线连接广播消息。
// 返回成功入队的连接数量，0 表示用户不在线（调用方通常静默忽略）。
func (m *ConnectionManager) SendToUser(userUUID string, msg []byte) int {
	m.mu.RLock()
	userConns, ok := m.byUser[userUUID]
	if !ok || len(userConns) == 0 {
		m.mu.RUnlock()
		return 0
	}
	clients := make([]*Client, 0, len(userConns))
	for _, client := range userConns {
		clients = append(clients, client)
	}
	m.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if client.Enqueue(msg) {
			sent++
		}
	}
	return sent
}

// IsOnline 返回用户是否有至少一条在线连接。
func (m *ConnectionManager) IsOnline(userUUID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userUUID]) > 0
}

// Count 返回当前在线连接数。
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byKey)
}

// Shutdown 关闭全部连接并阻止后续注册，用于进程优雅退出阶段。
func (m *ConnectionManager) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true

	clients := make([]*Client, 0, len(m.byKey))
	for _, client := range m.byKey {
		clients = append(clients, client)
	}
	m.byKey = make(map[string]*Client)
	m.byUser = make(map[string]map[string]*Client)
	m.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}

// buildKey 统一构造连接键。
func buildKey(userUUID, connID string) string {
	return userUUID + ":" + connID
}
