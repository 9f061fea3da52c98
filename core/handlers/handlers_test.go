package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/m3rciful/rocketbot/core/commands"
	"github.com/m3rciful/rocketbot/core/dialog"
	"github.com/m3rciful/rocketbot/core/router"
	"github.com/m3rciful/rocketbot/core/session"
)

func setup() (*router.Registry, *dialog.Engine) {
	reg := router.NewRegistry()
	eng := dialog.NewEngine(session.NewStore())
	Register(reg, eng)
	return reg, eng
}

func call(t *testing.T, reg *router.Registry, text string) string {
	t.Helper()
	fields := strings.Fields(text)
	key, cmd, ok := reg.LookupCommand(fields[0])
	if !ok {
		t.Fatalf("command %q not registered", fields[0])
	}
	reply, err := cmd.Handler(context.Background(), &commands.Request{
		Sender: "u", Room: "r", Text: text, Command: key, Args: fields[1:],
	})
	if err != nil {
		t.Fatalf("%s: %v", text, err)
	}
	return reply
}

func TestHelpListsCommands(t *testing.T) {
	reg, _ := setup()
	reply := call(t, reg, "help")
	for _, name := range []string{"!calc", "!dbcheck", "!hello", "!meeting", "!report", "!route"} {
		if !strings.Contains(reply, name) {
			t.Fatalf("help misses %s:\n%s", name, reply)
		}
	}
}

func TestHelloAlias(t *testing.T) {
	reg, _ := setup()
	if reply := call(t, reg, "Привет"); reply != greeting {
		t.Fatalf("reply = %q", reply)
	}
}

func TestCalc(t *testing.T) {
	reg, _ := setup()
	cases := map[string]string{
		"calc 2 * (3 + 4)": "2 * (3 + 4) = 14",
		"calculate 1/0":    "Деление на ноль.",
		"calc":             "Использование",
		"calc rm -rf":      "Не удалось",
	}
	for in, want := range cases {
		if reply := call(t, reg, in); !strings.HasPrefix(reply, want) {
			t.Fatalf("%q: reply = %q, want prefix %q", in, reply, want)
		}
	}
}

func TestStartDialogOnce(t *testing.T) {
	reg, eng := setup()
	first := call(t, reg, "meeting")
	if !strings.Contains(first, "участник") {
		t.Fatalf("unexpected intro %q", first)
	}
	if !eng.Active("u") {
		t.Fatal("session expected")
	}
	if reply := call(t, reg, "route"); !strings.Contains(reply, "завершите") {
		t.Fatalf("second dialog must be refused, got %q", reply)
	}
}
