package app

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"empty defaults to serve", []string{}, CommandServe},
		{"nil defaults to serve", nil, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker", []string{"worker"}, CommandWorker},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"help", []string{"help"}, CommandHelp},
		{"short help flag", []string{"-h"}, CommandHelp},
		{"long help flag", []string{"--help"}, CommandHelp},
		{"extra args ignored", []string{"worker", "--flag", "value"}, CommandWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if err != nil {
				t.Fatalf("ParseCommand(%v) error = %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCommand_UnknownReturnsError(t *testing.T) {
	cmd, err := ParseCommand([]string{"server"})
	if err == nil {
		t.Fatalf("expected error, got command %q", cmd)
	}
	if !strings.Contains(err.Error(), `"server"`) {
		t.Errorf("error = %v, want the unknown name quoted", err)
	}
}

func TestPrintUsage_ListsCommands(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf)

	for _, name := range []string{"serve", "worker", "migrate", "healthcheck", "help"} {
		if !strings.Contains(buf.String(), "  "+name) {
			t.Errorf("usage missing %q:\n%s", name, buf.String())
		}
	}
}

func TestRun_HelpPrintsUsage(t *testing.T) {
	var buf bytes.Buffer
	if err := Run(&buf, []string{"help"}); err != nil {
		t.Fatalf("Run(help): %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Usage: portal") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRun_UnknownCommandFails(t *testing.T) {
	var buf bytes.Buffer
	err := Run(&buf, []string{"bogus"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(buf.String(), "Usage: portal") {
		t.Errorf("usage should be printed on unknown command, got %q", buf.String())
	}
}
