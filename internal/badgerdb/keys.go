package badgerdb

import "fmt"

// Раскладка ключей:
//
//	room:{roomID}                  -> roomRecord
//	uroom:{userID}:{roomID}        -> пусто, индекс комнат участника
//	msg:{roomID}:{unixMs%019d}:{id} -> messageRecord
//
// Паддинг времени даёт лексикографический порядок (CreatedAt, ID) при prefix-скане.

func roomKey(roomID string) []byte {
	return []byte("room:" + roomID)
}

func userRoomPrefix(userID string) []byte {
	return []byte("uroom:" + userID + ":")
}

func userRoomKey(userID, roomID string) []byte {
	return append(userRoomPrefix(userID), roomID...)
}

func messagePrefix(roomID string) []byte {
	return []byte("msg:" + roomID + ":")
}

func messageKey(roomID string, atMs int64, id string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", roomID, atMs, id))
}

// prefixEnd - ключ, с которого начинается обратный скан по префиксу.
func prefixEnd(prefix []byte) []byte {
	out := make([]byte, 0, len(prefix)+1)
	out = append(out, prefix...)
	return append(out, 0xFF)
}
