package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/rocketbot/core/chat"
	"github.com/m3rciful/rocketbot/core/commands"
	"github.com/m3rciful/rocketbot/core/logger"
)

func (e *Engine) pollLoop(ctx context.Context, stop <-chan struct{}) {
	defer e.wg.Done()
	for {
		if !e.running.Load() {
			return
		}
		e.cycle(ctx)

		timer := time.NewTimer(e.opts.Interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

type cycleTally struct {
	messages   atomic.Int64
	dispatched atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

// cycle lists rooms once and polls each of them with bounded concurrency.
// It returns after every room goroutine has finished.
func (e *Engine) cycle(ctx context.Context) {
	start := time.Now()
	ctx = logger.WithCycle(ctx, uuid.NewString())
	e.stats.cycles.Add(1)

	rooms, err := e.opts.Transport.ListDirectRooms(ctx)
	if err != nil {
		e.stats.listErrors.Add(1)
		logger.LogEvent(ctx, logger.Poll, slog.LevelWarn, "poll.list_rooms",
			slog.String("status", "fail"),
			slog.String("outcome", "skip"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}
	e.stats.lastRooms.Store(int64(len(rooms)))

	var (
		wg    sync.WaitGroup
		tally cycleTally
		sem   = make(chan struct{}, e.opts.MaxConcurrency)
	)
rooms:
	for _, room := range rooms {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break rooms
		}
		wg.Add(1)
		go func(room chat.Room) {
			defer wg.Done()
			defer func() { <-sem }()
			e.pollRoom(ctx, room, &tally)
		}(room)
	}
	wg.Wait()

	level := slog.LevelDebug
	if tally.dispatched.Load() > 0 || tally.failed.Load() > 0 {
		level = slog.LevelInfo
	}
	if level == slog.LevelInfo || logger.ShouldSampleDebug() {
		logger.LogEvent(ctx, logger.Poll, level, "poll.cycle",
			slog.String("status", "ok"),
			slog.Int("rooms", len(rooms)),
			slog.Int64("messages", tally.messages.Load()),
			slog.Int64("dispatched", tally.dispatched.Load()),
			slog.Int64("duplicates", tally.duplicates.Load()),
			slog.Int64("failed_rooms", tally.failed.Load()),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}

// pollRoom fetches one room after the pacing delay and processes its messages in order.
func (e *Engine) pollRoom(ctx context.Context, room chat.Room, tally *cycleTally) {
	ctx = logger.WithRoom(ctx, room.ID)
	defer func() {
		if r := recover(); r != nil {
			e.stats.panics.Add(1)
			tally.failed.Add(1)
			logger.LogEvent(ctx, logger.Poll, slog.LevelError, "poll.room.panic",
				slog.String("status", "fail"),
				slog.String("err", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if e.opts.Pacing > 0 {
		timer := time.NewTimer(e.opts.Pacing)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	msgs, err := e.opts.Transport.FetchRecentMessages(ctx, room.ID, e.opts.FetchCount)
	if err != nil {
		e.stats.fetchErrors.Add(1)
		tally.failed.Add(1)
		logger.LogEvent(ctx, logger.Poll, slog.LevelWarn, "poll.fetch",
			slog.String("status", "fail"),
			slog.String("outcome", "skip"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}
	tally.messages.Add(int64(len(msgs)))
	for _, m := range msgs {
		if m.Room == "" {
			m.Room = room.ID
		}
		e.processMessage(ctx, m, tally)
	}
}

// processMessage runs dedup and dispatch for one message and queues the reply.
func (e *Engine) processMessage(ctx context.Context, m chat.Message, tally *cycleTally) {
	if m.ID == "" {
		return
	}
	if !e.opts.Dedup.MarkIfNew(m.ID) {
		e.stats.duplicates.Add(1)
		tally.duplicates.Add(1)
		return
	}
	if e.opts.SkipBacklog && !m.Timestamp.IsZero() && m.Timestamp.Before(e.startedAt()) {
		e.stats.backlog.Add(1)
		return
	}
	if strings.TrimSpace(m.Text) == "" {
		return
	}

	ctx = logger.WithRID(ctx, logger.BuildRID(m.Room, m.ID))
	ctx = logger.WithMessageMeta(ctx, m.ID, m.Sender, m.Room)

	reply := e.opts.Dispatcher.Dispatch(ctx, commands.Request{
		MessageID:  m.ID,
		Sender:     m.Sender,
		SenderName: m.SenderName,
		Room:       m.Room,
		Text:       m.Text,
	})
	e.stats.dispatched.Add(1)
	tally.dispatched.Add(1)
	if reply == "" {
		return
	}
	e.reply(ctx, m.Room, reply)
}

func (e *Engine) reply(ctx context.Context, room, text string) {
	send := func(ctx context.Context) error {
		return e.opts.Transport.SendMessage(ctx, room, text)
	}
	if e.opts.Sender == nil {
		if err := send(ctx); err != nil {
			e.stats.sendErrors.Add(1)
			logger.LogEvent(ctx, logger.Chat, slog.LevelWarn, "chat.send",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			return
		}
		e.stats.replies.Add(1)
		return
	}
	if err := e.opts.Sender.Enqueue(ctx, room, "send_message", send); err != nil {
		e.stats.sendErrors.Add(1)
		logger.LogEvent(ctx, logger.Chat, slog.LevelWarn, "chat.send.enqueue",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	e.stats.replies.Add(1)
}

func (e *Engine) startedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}
