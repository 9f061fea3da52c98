package dialog

import (
	"fmt"
	"strings"

	"github.com/m3rciful/rocketbot/core/session"
)

// Route plan states.
const (
	StateAwaitingDates   session.State = "awaiting_dates"
	StateAwaitingDetails session.State = "awaiting_details"
)

const displayDate = "02-01-2006"

var routePlan = Definition{
	Kind:    KindRoutePlan,
	Title:   "План маршрута",
	Initial: StateAwaitingDates,
	Intro:   "Введите даты поездки в формате ДД-ММ-ГГГГ ДД-ММ-ГГГГ (начало и окончание).",
	Steps: map[session.State]StepFunc{
		StateAwaitingDates:   routeDates,
		StateAwaitingDetails: routeDetails,
	},
}

func routeDates(t *Turn) (session.State, string) {
	parts := strings.Fields(t.Text)
	if len(parts) != 2 {
		return StateAwaitingDates, "Нужно ровно две даты через пробел, например: 01-01-2025 15-01-2025."
	}
	from, ok := parseDate(parts[0], t.Now.Location())
	if !ok {
		return StateAwaitingDates, fmt.Sprintf("Не удалось распознать дату %q. Используйте формат ДД-ММ-ГГГГ.", parts[0])
	}
	to, ok := parseDate(parts[1], t.Now.Location())
	if !ok {
		return StateAwaitingDates, fmt.Sprintf("Не удалось распознать дату %q. Используйте формат ДД-ММ-ГГГГ.", parts[1])
	}
	if to.Before(from) {
		return StateAwaitingDates, "Дата окончания раньше даты начала. Введите даты заново."
	}
	t.Set("date_from", from.Format(displayDate))
	t.Set("date_to", to.Format(displayDate))
	return StateAwaitingDetails, "Опишите маршрут: пункты, транспорт, пожелания."
}

func routeDetails(t *Turn) (session.State, string) {
	t.Set("details", t.Text)
	return session.StateComplete, fmt.Sprintf("План маршрута с %s по %s принят: %s",
		t.Data["date_from"], t.Data["date_to"], t.Text)
}
