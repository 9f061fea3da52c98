package dialog

import "github.com/m3rciful/rocketbot/core/session"

// Report request states.
const (
	StateAwaitingReportType   session.State = "awaiting_report_type"
	StateAwaitingCustomParams session.State = "awaiting_custom_params"
)

var reportTypes = map[string]string{
	"1": "daily",
	"2": "weekly",
	"3": "custom",
}

var reportRequest = Definition{
	Kind:    KindReport,
	Title:   "Запрос отчёта",
	Initial: StateAwaitingReportType,
	Intro:   "Какой отчёт подготовить?\n1. Ежедневный\n2. Еженедельный\n3. Настраиваемый",
	Steps: map[session.State]StepFunc{
		StateAwaitingReportType:   reportType,
		StateAwaitingCustomParams: reportCustomParams,
	},
}

func reportType(t *Turn) (session.State, string) {
	kind, ok := reportTypes[t.Text]
	if !ok {
		return StateAwaitingReportType, "Выберите 1, 2 или 3."
	}
	t.Set("report_type", kind)
	switch kind {
	case "daily":
		return session.StateComplete, "Ежедневный отчёт будет готов в течение часа."
	case "weekly":
		return session.StateComplete, "Еженедельный отчёт будет готов до конца рабочего дня."
	default:
		return StateAwaitingCustomParams, "Опишите параметры отчёта: период, показатели, формат."
	}
}

func reportCustomParams(t *Turn) (session.State, string) {
	t.Set("params", t.Text)
	return session.StateComplete, "Запрос на настраиваемый отчёт принят. Результат придёт в течение суток."
}
