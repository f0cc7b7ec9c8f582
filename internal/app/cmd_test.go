package app

import (
	"testing"
)

func TestParseCommand_DefaultsToServe(t *testing.T) {
	cmd := ParseCommand([]string{})
	if cmd != CommandServe {
		t.Errorf("ParseCommand([]) = %q, want %q", cmd, CommandServe)
	}
}

func TestParseCommand_KnownCommands(t *testing.T) {
	tests := []struct {
		arg  string
		want Command
	}{
		{"serve", CommandServe},
		{"web", CommandWeb},
		{"worker", CommandWorker},
		{"migrate", CommandMigrate},
		{"healthcheck", CommandHealthcheck},
	}

	for _, tt := range tests {
		if got := ParseCommand([]string{tt.arg}); got != tt.want {
			t.Errorf("ParseCommand([%s]) = %q, want %q", tt.arg, got, tt.want)
		}
	}
}

func TestParseCommand_UnknownDefaultsToServe(t *testing.T) {
	cmd := ParseCommand([]string{"unknown"})
	if cmd != CommandServe {
		t.Errorf("ParseCommand([unknown]) = %q, want %q", cmd, CommandServe)
	}
}

func TestParseCommand_IgnoresExtraArgs(t *testing.T) {
	cmd := ParseCommand([]string{"worker", "--flag", "value"})
	if cmd != CommandWorker {
		t.Errorf("ParseCommand([worker --flag value]) = %q, want %q", cmd, CommandWorker)
	}
}

func TestHealthcheckPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("WEB_PORT", "")

	if got := healthcheckPort([]string{"healthcheck"}); got != "3000" {
		t.Errorf("healthcheckPort(gateway) = %q, want %q", got, "3000")
	}
	if got := healthcheckPort([]string{"healthcheck", "web"}); got != "5173" {
		t.Errorf("healthcheckPort(web) = %q, want %q", got, "5173")
	}

	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("WEB_PORT", "8081")

	if got := healthcheckPort([]string{"healthcheck"}); got != "8080" {
		t.Errorf("healthcheckPort(gateway) = %q, want %q", got, "8080")
	}
	if got := healthcheckPort([]string{"healthcheck", "web"}); got != "8081" {
		t.Errorf("healthcheckPort(web) = %q, want %q", got, "8081")
	}
}
