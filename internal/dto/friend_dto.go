package dto

// SendFriendRequestRequest 发起好友申请，目标用户用 username#tag 定位
type SendFriendRequestRequest struct {
	Username string `json:"username" binding:"required"`
	Tag      string `json:"tag" binding:"required,len=4"`
}

// RespondFriendRequestRequest 处理好友申请
type RespondFriendRequestRequest struct {
	SenderUuid string `json:"senderUuid" binding:"required"`
	Action     string `json:"action" binding:"required,oneof=accept decline"`
}

// PendingRequestResponse 收到的待处理申请
type PendingRequestResponse struct {
	SenderUuid  string `json:"senderUuid"`
	Username    string `json:"username"`
	Tag         string `json:"tag"`
	Nickname    string `json:"nickname"`
	Avatar      string `json:"avatar"`
	RequestedAt int64  `json:"requestedAt"` // 毫秒时间戳
}

// FriendResponse 好友列表项
type FriendResponse struct {
	Uuid     string `json:"uuid"`
	Username string `json:"username"`
	Tag      string `json:"tag"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Since    int64  `json:"since"` // 成为好友的毫秒时间戳
}
