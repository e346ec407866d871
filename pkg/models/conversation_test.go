package models

import "testing"

func TestConversationAppend(t *testing.T) {
	var c Conversation
	c.Append(Turn{Kind: TurnUser, Text: "hi"})
	last, ok := c.LastTurn()
	if !ok {
		t.Fatal("expected a last turn")
	}
	if last.Kind != TurnUser || last.Text != "hi" {
		t.Errorf("unexpected last turn: %+v", last)
	}
	if last.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}
}

func TestLastTurnEmpty(t *testing.T) {
	var c Conversation
	if _, ok := c.LastTurn(); ok {
		t.Error("expected no last turn on empty history")
	}
}
