package badgerdb

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cwrk-planet/ijara-chat/internal/domain"

	"github.com/dgraph-io/badger/v4"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type ChatRepository struct {
	db *DB
}

func NewChatRepository(db *DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Save в одной транзакции дописывает сообщение в лог комнаты и обновляет сводку.
// Если комнаты нет, она создаётся из room. Если под тем же id лежит другая комната
// или отправитель не участник, возвращается domain.ErrNotParticipant.
// Сводка повторяет хвост лога: сообщение с отстающими часами ложится в лог
// по своему времени и сводку не двигает.
func (r *ChatRepository) Save(ctx context.Context, room domain.ChatRoom, msg domain.ChatMessage, receiverID string) (domain.ChatMessage, error) {
	if msg.SenderID == receiverID || !room.HasParticipant(msg.SenderID) || !room.HasParticipant(receiverID) {
		return domain.ChatMessage{}, domain.ErrNotParticipant
	}

	var saved messageRecord
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		rec, found, err := getRoom(txn, room.ID)
		if err != nil {
			return err
		}
		if !found {
			rec = fromRoom(room)
		} else if !sameRoom(rec, room) {
			return domain.ErrNotParticipant
		}

		m := fromMessage(msg)
		m.RoomID = rec.ID

		data, err := encode(m)
		if err != nil {
			return err
		}
		if err := txn.Set(messageKey(m.RoomID, m.At, m.ID), data); err != nil {
			return err
		}

		// лог сообщений авторитетен, сводка только для инбокса
		if rec.LastSenderID == "" || m.At >= rec.LastMessageAt {
			rec.LastMessage = m.Text
			rec.LastMessageAt = m.At
			rec.LastSenderID = m.SenderID
		}
		rec.Unread[receiverID]++
		if err := putRoom(txn, rec); err != nil {
			return err
		}

		saved = m
		return nil
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return saved.toDomain(), nil
}

// ListMessages - весь лог комнаты по возрастанию (CreatedAt, ID).
func (r *ChatRepository) ListMessages(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	out := make([]domain.ChatMessage, 0, 16)
	err := r.db.view(ctx, func(txn *badger.Txn) error {
		prefix := messagePrefix(roomID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			m, err := readMessage(it.Item())
			if err != nil {
				return err
			}
			out = append(out, m.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// History возвращает страницу от новых к старым с курсорной пагинацией (created_at, id DESC).
func (r *ChatRepository) History(ctx context.Context, roomID, after string, limit int) ([]domain.ChatMessage, string, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", err
	}

	prefix := messagePrefix(roomID)
	seek := prefixEnd(prefix)
	if cur != nil {
		seek = messageKey(roomID, toMillis(cur.CreatedAt), cur.ID)
	}

	out := make([]domain.ChatMessage, 0, limit)
	err = r.db.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(seek)
		// курсор указывает на последний уже отданный элемент
		if cur != nil && it.ValidForPrefix(prefix) && bytes.Equal(it.Item().Key(), seek) {
			it.Next()
		}
		for ; it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			m, err := readMessage(it.Item())
			if err != nil {
				return err
			}
			out = append(out, m.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if next, err = EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID}); err != nil {
			return nil, "", err
		}
	}
	return out, next, nil
}

func readMessage(item *badger.Item) (messageRecord, error) {
	var m messageRecord
	err := item.Value(func(val []byte) error {
		return decode(val, &m)
	})
	if err != nil {
		return messageRecord{}, fmt.Errorf("decode message %q: %w", item.Key(), err)
	}
	return m, nil
}
