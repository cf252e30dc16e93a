// Copyright (c) 2025 BVK Chaitanya

package gobs

// KeyValue is used by db backup/restore to serialize raw key-value pairs.
type KeyValue struct {
	Key   string
	Value []byte
}

type TelegramState struct {
	UserChatIDMap map[string]int64
}
