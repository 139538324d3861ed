package postgres_test

import (
	"testing"

	"github.com/MrWong99/voxcmd/internal/command"
)

func mustRegistry(t *testing.T) *command.MemRegistry {
	t.Helper()
	cmds, err := command.LoadCommands()
	if err != nil {
		t.Fatal(err)
	}
	r, err := command.NewMemRegistry(cmds...)
	if err != nil {
		t.Fatal(err)
	}
	return r
}
