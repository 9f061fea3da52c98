// Package handlers implements the built-in chat commands.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/rocketbot/core/calc"
	"github.com/m3rciful/rocketbot/core/commands"
	"github.com/m3rciful/rocketbot/core/dialog"
	"github.com/m3rciful/rocketbot/core/session"
)

// Lister exposes the command table for help output.
type Lister interface {
	ListCommands(visibleOnly bool) []commands.Info
}

// Registrar accepts command registrations.
type Registrar interface {
	Lister
	RegisterCommand(name string, cmd commands.Command)
}

// Starter opens dialogs.
type Starter interface {
	Start(ctx context.Context, sender, room string, kind session.Kind) (dialog.Reply, error)
}

const greeting = "Привет! Как я могу помочь? Отправьте help, чтобы увидеть список команд."

// Register wires every built-in command into reg.
func Register(reg Registrar, dialogs Starter) {
	reg.RegisterCommand("help", commands.Command{
		Handler:     Help(reg),
		Description: "список команд",
		Aliases:     []string{"помощь"},
	})
	reg.RegisterCommand("hello", commands.Command{
		Handler:     Hello,
		Description: "приветствие",
		Aliases:     []string{"привет", "hi"},
	})
	reg.RegisterCommand("calc", commands.Command{
		Handler:     Calc,
		Description: "калькулятор: calc 2 * (3 + 4)",
		Aliases:     []string{"calculate"},
	})
	reg.RegisterCommand("route", commands.Command{
		Handler:     StartDialog(dialogs, dialog.KindRoutePlan),
		Description: "спланировать маршрут",
	})
	reg.RegisterCommand("report", commands.Command{
		Handler:     StartDialog(dialogs, dialog.KindReport),
		Description: "запросить отчёт",
	})
	reg.RegisterCommand("dbcheck", commands.Command{
		Handler:     StartDialog(dialogs, dialog.KindDBCheck),
		Description: "проверка по базе",
	})
	reg.RegisterCommand("meeting", commands.Command{
		Handler:     StartDialog(dialogs, dialog.KindSchedule),
		Description: "назначить встречу",
		Aliases:     []string{"schedule"},
	})
}

// Help renders the visible command table.
func Help(l Lister) commands.HandlerFunc {
	return func(context.Context, *commands.Request) (string, error) {
		var b strings.Builder
		b.WriteString("Доступные команды:")
		for _, info := range l.ListCommands(true) {
			fmt.Fprintf(&b, "\n!%s - %s", info.Name, info.Description)
		}
		return b.String(), nil
	}
}

// Hello answers with a greeting.
func Hello(context.Context, *commands.Request) (string, error) {
	return greeting, nil
}

// Calc evaluates the arguments as an arithmetic expression.
func Calc(_ context.Context, req *commands.Request) (string, error) {
	expr := strings.Join(req.Args, " ")
	if strings.TrimSpace(expr) == "" {
		return "Использование: calc 2 * (3 + 4)", nil
	}
	v, err := calc.Eval(expr)
	switch {
	case err == nil:
		return fmt.Sprintf("%s = %s", expr, calc.Format(v)), nil
	case errors.Is(err, calc.ErrDivisionByZero):
		return "Деление на ноль.", nil
	case errors.Is(err, calc.ErrOverflow):
		return "Результат слишком большой.", nil
	case errors.Is(err, calc.ErrSyntax):
		return "Не удалось разобрать выражение. Допустимы числа, + - * / % ^ и скобки.", nil
	default:
		return "", err
	}
}

// StartDialog opens a wizard of the given kind for the sender.
func StartDialog(s Starter, kind session.Kind) commands.HandlerFunc {
	return func(ctx context.Context, req *commands.Request) (string, error) {
		reply, err := s.Start(ctx, req.Sender, req.Room, kind)
		if errors.Is(err, session.ErrExists) {
			return "Сначала завершите текущий диалог.", nil
		}
		if err != nil {
			return "", err
		}
		return reply.Text, nil
	}
}
