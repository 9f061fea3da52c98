package telegram

import (
	"sort"
	"sync"

	"github.com/m3rciful/rocketbot/core/chat"
)

// inbox buffers inbound messages per chat until the poll cycle drains them.
// Each chat keeps at most limit messages; the oldest are dropped first.
type inbox struct {
	mu      sync.Mutex
	limit   int
	chats   map[string][]chat.Message
	names   map[string]string
	dropped uint64
}

func newInbox(limit int) *inbox {
	if limit <= 0 {
		limit = 50
	}
	return &inbox{
		limit: limit,
		chats: make(map[string][]chat.Message),
		names: make(map[string]string),
	}
}

func (b *inbox) push(m chat.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := append(b.chats[m.Room], m)
	if over := len(q) - b.limit; over > 0 {
		b.dropped += uint64(over)
		q = append([]chat.Message(nil), q[over:]...)
	}
	b.chats[m.Room] = q
	if m.SenderName != "" {
		b.names[m.Room] = m.SenderName
	}
}

// rooms lists chats with pending messages, sorted by id.
func (b *inbox) rooms() []chat.Room {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]chat.Room, 0, len(b.chats))
	for id, q := range b.chats {
		if len(q) == 0 {
			continue
		}
		out = append(out, chat.Room{ID: id, Name: b.names[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// take removes and returns up to count of the oldest pending messages of a chat.
func (b *inbox) take(room string, count int) []chat.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.chats[room]
	if count <= 0 || count > len(q) {
		count = len(q)
	}
	out := append([]chat.Message(nil), q[:count]...)
	if rest := q[count:]; len(rest) > 0 {
		b.chats[room] = append([]chat.Message(nil), rest...)
	} else {
		delete(b.chats, room)
	}
	return out
}

func (b *inbox) droppedCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
