package util

import (
	"github.com/bwmarrin/snowflake"
)

var node *snowflake.Node

// InitSnowflake 初始化雪花节点，进程启动时调用一次。
// nodeID 在集群内必须唯一，单机部署传固定值即可。
func InitSnowflake(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	node = n
	return nil
}

// GenID 生成一个雪花 ID。
func GenID() int64 {
	return node.Generate().Int64()
}

// GenIDString 生成字符串形式的雪花 ID（定长，适合做业务主键）。
func GenIDString() string {
	return node.Generate().String()
}
