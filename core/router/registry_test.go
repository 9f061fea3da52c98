package router

import (
	"context"
	"testing"

	"github.com/m3rciful/rocketbot/core/commands"
)

func noop(context.Context, *commands.Request) (string, error) { return "ok", nil }

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("hello", commands.Command{Handler: noop, Description: "greet", Aliases: []string{"привет"}})
	reg.RegisterCommand("/calc", commands.Command{Handler: noop, Description: "calculate"})

	cases := []struct {
		token string
		want  string
		ok    bool
	}{
		{"hello", "hello", true},
		{"HELLO", "hello", true},
		{"!hello", "hello", true},
		{"/Привет", "hello", true},
		{"calc", "calc", true},
		{"!!calc", "", false},
		{"unknown", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		key, _, ok := reg.LookupCommand(tc.token)
		if ok != tc.ok || key != tc.want {
			t.Fatalf("LookupCommand(%q) = %q, %v; want %q, %v", tc.token, key, ok, tc.want, tc.ok)
		}
	}
}

func TestRegistrySkipsInvalidAndDuplicates(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("help", commands.Command{Handler: noop, Description: "first"})
	reg.RegisterCommand("HELP", commands.Command{Handler: noop, Description: "second"})
	reg.RegisterCommand("nodesc", commands.Command{Handler: noop})
	reg.RegisterCommand("nohandler", commands.Command{Description: "x"})
	reg.RegisterCommand("other", commands.Command{Handler: noop, Description: "alias clash", Aliases: []string{"help"}})

	if reg.Len() != 2 {
		t.Fatalf("len = %d", reg.Len())
	}
	_, cmd, _ := reg.LookupCommand("help")
	if cmd.Description != "first" {
		t.Fatalf("duplicate overwrote original: %q", cmd.Description)
	}
}

func TestListCommandsSortedAndFiltered(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("report", commands.Command{Handler: noop, Description: "r"})
	reg.RegisterCommand("calc", commands.Command{Handler: noop, Description: "c"})
	reg.RegisterCommand("debug", commands.Command{Handler: noop, Description: "d", Hidden: true})

	all := reg.ListCommands(false)
	if len(all) != 3 || all[0].Name != "calc" || all[1].Name != "debug" || all[2].Name != "report" {
		t.Fatalf("unexpected list %+v", all)
	}
	visible := reg.ListCommands(true)
	if len(visible) != 2 {
		t.Fatalf("hidden command listed: %+v", visible)
	}
}
