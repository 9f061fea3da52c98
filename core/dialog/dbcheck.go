package dialog

import (
	"fmt"
	"strings"

	"github.com/m3rciful/rocketbot/core/session"
)

// Database check states.
const (
	StateAwaitingSearchType  session.State = "awaiting_search_type"
	StateAwaitingSearchValue session.State = "awaiting_search_value"
	StateAwaitingFile        session.State = "awaiting_file"
)

const dbCheckFileSuffix = ".csv"

var searchTypes = map[string]string{
	"1": "fio",
	"2": "department",
	"3": "location",
}

var dbCheck = Definition{
	Kind:    KindDBCheck,
	Title:   "Проверка по базе",
	Initial: StateAwaitingSearchType,
	Intro:   "По какому полю искать?\n1. ФИО\n2. Подразделение\n3. Местоположение",
	Steps: map[session.State]StepFunc{
		StateAwaitingSearchType:  dbSearchType,
		StateAwaitingSearchValue: dbSearchValue,
		StateAwaitingFile:        dbFile,
	},
}

func dbSearchType(t *Turn) (session.State, string) {
	field, ok := searchTypes[t.Text]
	if !ok {
		return StateAwaitingSearchType, "Выберите 1, 2 или 3."
	}
	t.Set("search_type", field)
	return StateAwaitingSearchValue, "Введите значение для поиска."
}

func dbSearchValue(t *Turn) (session.State, string) {
	t.Set("search_value", t.Text)
	return StateAwaitingFile, "Укажите имя файла выгрузки (" + dbCheckFileSuffix + ")."
}

func dbFile(t *Turn) (session.State, string) {
	if !strings.HasSuffix(strings.ToLower(t.Text), dbCheckFileSuffix) {
		return StateAwaitingFile, "Файл должен иметь расширение " + dbCheckFileSuffix + "."
	}
	t.Set("file", t.Text)
	return session.StateComplete, fmt.Sprintf("Проверка запущена: поле %s, значение %q, файл %s.",
		t.Data["search_type"], t.Data["search_value"], t.Text)
}
