package app

import (
	"strings"
	"testing"

	"meshmap/telegram-bot/internal/flow"
	"meshmap/telegram-bot/internal/model"
)

func TestRenderReplyTextSelectionList(t *testing.T) {
	reply := flow.Reply{
		Prompt: flow.PromptSelectRename,
		Markers: []model.Marker{
			{Name: "Alpha"},
			{Name: "Bravo"},
		},
	}

	text := renderReplyText(reply)
	if !strings.Contains(text, "1. Alpha\n") || !strings.Contains(text, "2. Bravo\n") {
		t.Fatalf("expected numbered list, got %q", text)
	}
}

func TestRenderReplyTextDeleteShowsRemaining(t *testing.T) {
	reply := flow.Reply{
		Prompt:   flow.NoticeMarkerDeleted,
		Terminal: true,
		Markers:  []model.Marker{{Name: "Alpha", Link: "https://example.com"}},
	}

	text := renderReplyText(reply)
	if !strings.Contains(text, "• Alpha → https://example.com") {
		t.Fatalf("expected remaining marker line, got %q", text)
	}

	reply.Markers = nil
	if !strings.Contains(renderReplyText(reply), messages["no_markers_left"]) {
		t.Fatalf("expected empty-collection notice")
	}
}

func TestRenderReplyTextUnknownPromptFallsBack(t *testing.T) {
	if got := renderReplyText(flow.Reply{Prompt: flow.PromptNone}); got != messages["error_generic"] {
		t.Fatalf("expected generic fallback, got %q", got)
	}
}

func TestStatsText(t *testing.T) {
	stats := model.Stats{
		Total:        3,
		UniqueOwners: 2,
		WithLink:     1,
		TopOwners: []model.OwnerCount{
			{ID: "42", Name: "mapper", Count: 2},
			{ID: "7", Name: model.AnonymousName, Count: 1},
		},
		SpecialOwners: 1,
	}

	text := statsText(stats)
	for _, want := range []string{
		"<b>Total markers:</b> 3",
		"<b>Unique users:</b> 2",
		"(33.3%)",
		"1. @mapper: 2 markers",
		"2. User #7: 1 markers",
		"<b>Special users:</b> 1",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("stats text missing %q:\n%s", want, text)
		}
	}
}

func TestStatsTextEmptyDataset(t *testing.T) {
	text := statsText(model.Stats{})
	if !strings.Contains(text, "No markers recorded.") {
		t.Fatalf("expected empty-dataset line, got %q", text)
	}
	if !strings.Contains(text, "(0%)") {
		t.Fatalf("expected zero link share, got %q", text)
	}
}
