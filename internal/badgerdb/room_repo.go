package badgerdb

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/cwrk-planet/ijara-chat/internal/domain"

	"github.com/dgraph-io/badger/v4"
)

type RoomRepository struct {
	db *DB
}

func NewRoomRepository(db *DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// EnsureRoom создаёт комнату, если её ещё нет, одной транзакцией.
// Параллельные вызовы не падают: проигравший получает уже созданную запись.
func (r *RoomRepository) EnsureRoom(ctx context.Context, room domain.ChatRoom) (domain.ChatRoom, bool, error) {
	var (
		out     domain.ChatRoom
		created bool
	)
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		rec, found, err := getRoom(txn, room.ID)
		if err != nil {
			return err
		}
		if found {
			if !sameRoom(rec, room) {
				return domain.ErrNotParticipant
			}
			out, created = rec.toDomain(), false
			return nil
		}
		rec = fromRoom(room)
		if err := putRoom(txn, rec); err != nil {
			return err
		}
		out, created = rec.toDomain(), true
		return nil
	})
	if err != nil {
		return domain.ChatRoom{}, false, err
	}
	return out, created, nil
}

func (r *RoomRepository) Get(ctx context.Context, roomID string) (*domain.ChatRoom, error) {
	var rec roomRecord
	err := r.db.view(ctx, func(txn *badger.Txn) error {
		var (
			found bool
			err   error
		)
		rec, found, err = getRoom(txn, roomID)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrRoomNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	room := rec.toDomain()
	return &room, nil
}

// ListByParticipant возвращает все комнаты пользователя через индекс uroom:.
func (r *RoomRepository) ListByParticipant(ctx context.Context, userID string) ([]domain.ChatRoom, error) {
	var out []domain.ChatRoom
	err := r.db.view(ctx, func(txn *badger.Txn) error {
		prefix := userRoomPrefix(userID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			roomID := string(it.Item().Key()[len(prefix):])
			rec, found, err := getRoom(txn, roomID)
			if err != nil {
				return err
			}
			if !found {
				slog.Warn("badger: orphan room index", "user_id", userID, "room_id", roomID)
				continue
			}
			out = append(out, rec.toDomain())
		}
		return nil
	})
	return out, err
}

// MarkRead обнуляет счётчик непрочитанных для участника.
// Возвращает true, если счётчик был ненулевым.
func (r *RoomRepository) MarkRead(ctx context.Context, roomID, userID string) (bool, error) {
	var changed bool
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		changed = false
		rec, found, err := getRoom(txn, roomID)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrRoomNotFound
		}
		if !rec.toDomain().HasParticipant(userID) {
			return domain.ErrNotParticipant
		}
		if rec.Unread[userID] == 0 {
			return nil
		}
		rec.Unread[userID] = 0
		data, err := encode(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(roomKey(rec.ID), data); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// sameRoom - под этим id лежит именно эта комната: тот же объект и та же пара.
func sameRoom(rec roomRecord, room domain.ChatRoom) bool {
	return rec.PropertyID == room.PropertyID && slices.Equal(rec.Participants, room.Participants)
}

func getRoom(txn *badger.Txn, roomID string) (roomRecord, bool, error) {
	item, err := txn.Get(roomKey(roomID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return roomRecord{}, false, nil
	}
	if err != nil {
		return roomRecord{}, false, err
	}
	var rec roomRecord
	err = item.Value(func(val []byte) error {
		return decode(val, &rec)
	})
	if err != nil {
		return roomRecord{}, false, err
	}
	if rec.Unread == nil {
		rec.Unread = map[string]int{}
	}
	return rec, true, nil
}

// putRoom пишет сводку и индекс для обоих участников.
func putRoom(txn *badger.Txn, rec roomRecord) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}
	if err := txn.Set(roomKey(rec.ID), data); err != nil {
		return err
	}
	for _, p := range rec.Participants {
		if err := txn.Set(userRoomKey(p, rec.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

