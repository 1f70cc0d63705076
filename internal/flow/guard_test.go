package flow

import (
	"testing"

	"meshmap/telegram-bot/internal/model"
)

func TestGuardBeginEnd(t *testing.T) {
	g := NewGuard()

	if !g.Begin("42", model.OpAdd) {
		t.Fatalf("expected first Begin to succeed")
	}
	if g.Begin("42", model.OpAdd) {
		t.Fatalf("expected second Begin to fail while registered")
	}
	if g.Begin("42", model.OpDelete) {
		t.Fatalf("expected Begin with other kind to fail while registered")
	}
	if !g.Begin("7", model.OpAdd) {
		t.Fatalf("expected unrelated owner to register")
	}

	g.End("42")
	g.End("42") // idempotent
	if !g.Begin("42", model.OpRename) {
		t.Fatalf("expected Begin to succeed after End")
	}
}

func TestGuardIsBlocking(t *testing.T) {
	g := NewGuard()

	if g.IsBlocking("42", model.OpAdd) {
		t.Fatalf("expected no blocking without registration")
	}

	g.Begin("42", model.OpAdd)
	if g.IsBlocking("42", model.OpAdd) {
		t.Fatalf("same-kind re-entry must not block")
	}
	if !g.IsBlocking("42", model.OpRename) {
		t.Fatalf("different kind must block")
	}
	if g.IsBlocking("7", model.OpRename) {
		t.Fatalf("other owners must be unaffected")
	}
}
