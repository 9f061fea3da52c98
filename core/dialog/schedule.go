package dialog

import (
	"fmt"
	"strings"

	"github.com/m3rciful/rocketbot/core/session"
)

// Schedule meeting states.
const (
	StateAwaitingParticipants session.State = "awaiting_participants"
	StateAwaitingDate         session.State = "awaiting_date"
	StateAwaitingTopic        session.State = "awaiting_topic"
)

const displayDateTime = "02-01-2006 15:04"

var scheduleMeeting = Definition{
	Kind:    KindSchedule,
	Title:   "Назначение встречи",
	Initial: StateAwaitingParticipants,
	Intro:   "Перечислите участников через запятую.",
	Steps: map[session.State]StepFunc{
		StateAwaitingParticipants: meetingParticipants,
		StateAwaitingDate:         meetingDate,
		StateAwaitingTopic:        meetingTopic,
	},
}

func meetingParticipants(t *Turn) (session.State, string) {
	var names []string
	for _, part := range strings.Split(t.Text, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return StateAwaitingParticipants, "Нужен хотя бы один участник. Перечислите их через запятую."
	}
	t.Set("participants", strings.Join(names, ", "))
	return StateAwaitingDate, "Когда встреча? Формат: ДД-ММ-ГГГГ ЧЧ:ММ."
}

func meetingDate(t *Turn) (session.State, string) {
	at, ok := parseDateTime(t.Text, t.Now.Location())
	if !ok {
		return StateAwaitingDate, "Не удалось распознать дату. Формат: ДД-ММ-ГГГГ ЧЧ:ММ."
	}
	if !at.After(t.Now) {
		return StateAwaitingDate, "Эта дата уже прошла. Укажите время в будущем."
	}
	t.Set("date", at.Format(displayDateTime))
	return StateAwaitingTopic, "Какая тема встречи?"
}

func meetingTopic(t *Turn) (session.State, string) {
	t.Set("topic", t.Text)
	return session.StateComplete, fmt.Sprintf("Встреча %q назначена на %s. Участники: %s.",
		t.Text, t.Data["date"], t.Data["participants"])
}
