package cache

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Key 生成命名空间前缀的缓存键。
// keyData 做确定性 JSON 序列化（map 键由 encoding/json 排序，结构体
// 字段顺序固定），再做 xxhash64 内容散列。命名空间作为前缀，
// 跨命名空间不可能碰撞。
func Key(ns Namespace, keyData any) string {
	data, err := json.Marshal(keyData)
	if err != nil {
		// 极少数不可序列化类型，退化为确定性字符串表示
		data = []byte(fmt.Sprintf("%v", keyData))
	}
	return string(ns) + ":" + strconv.FormatUint(xxhash.Sum64(data), 16)
}
