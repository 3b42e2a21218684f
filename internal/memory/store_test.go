package memory

import (
	"fmt"
	"path/filepath"
	"slices"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name    string
		history []string
		window  int
		want    []string
	}{
		{"under window", []string{"a", "b"}, 10, []string{"a", "b"}},
		{"exact window", []string{"a", "b"}, 2, []string{"a", "b"}},
		{"keeps newest", []string{"a", "b", "c", "d", "e"}, 2, []string{"d", "e"}},
		{"nil history", nil, 10, []string{}},
		{"zero window", []string{"a"}, 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.history, tt.window)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Truncate(%v, %d) = %v, want %v", tt.history, tt.window, got, tt.want)
			}
		})
	}
}

func TestTruncate_DoesNotAlias(t *testing.T) {
	h := []string{"a", "b", "c"}
	got := Truncate(h, 2)
	got[0] = "changed"
	if h[1] != "b" {
		t.Error("Truncate result aliases its input")
	}
}

// storeFactories lets every behavioural test run against both
// implementations.
func storeFactories(t *testing.T) map[string]func() ConversationStore {
	t.Helper()
	return map[string]func() ConversationStore{
		"memory": func() ConversationStore { return NewStore() },
		"sqlite": func() ConversationStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "conv.db"), nil)
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestLoad_MissingIsEmpty(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			got, err := newStore().Load(t.Context(), "5511999999999@s.whatsapp.net")
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("Load of unknown id = %#v, want empty non-nil slice", got)
			}
		})
	}
}

func TestSaveLoad_RoundTripPreservesOrder(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			want := []string{"Oi", "Olá! Como posso ajudar?", "Vou sim", "Presença confirmada para:\n- Maria"}
			if err := s.Save(t.Context(), "jid-1", want); err != nil {
				t.Fatalf("Save error: %v", err)
			}
			got, err := s.Load(t.Context(), "jid-1")
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if !slices.Equal(got, want) {
				t.Errorf("Load = %v, want %v", got, want)
			}
		})
	}
}

func TestSave_LastWriteWins(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			s.Save(t.Context(), "jid-1", []string{"first"})
			s.Save(t.Context(), "jid-1", []string{"second", "third"})

			got, _ := s.Load(t.Context(), "jid-1")
			if !slices.Equal(got, []string{"second", "third"}) {
				t.Errorf("Load = %v, want [second third]", got)
			}
		})
	}
}

func TestWindowBound_ManyTurns(t *testing.T) {
	const window = 10
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			for turn := 0; turn < 25; turn++ {
				h, err := s.Load(t.Context(), "jid")
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				h = append(h, fmt.Sprintf("user-%d", turn), fmt.Sprintf("reply-%d", turn))
				if err := s.Save(t.Context(), "jid", Truncate(h, window)); err != nil {
					t.Fatalf("Save: %v", err)
				}

				got, _ := s.Load(t.Context(), "jid")
				if len(got) > window {
					t.Fatalf("turn %d: history length %d exceeds window %d", turn, len(got), window)
				}
				if got[len(got)-1] != fmt.Sprintf("reply-%d", turn) {
					t.Fatalf("turn %d: newest entry = %q", turn, got[len(got)-1])
				}
			}

			got, _ := s.Load(t.Context(), "jid")
			if got[0] != "user-20" {
				t.Errorf("oldest retained entry = %q, want user-20", got[0])
			}
		})
	}
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Save(t.Context(), "jid", []string{"a"})
	h, _ := s.Load(t.Context(), "jid")
	h[0] = "mutated"

	again, _ := s.Load(t.Context(), "jid")
	if again[0] != "a" {
		t.Error("mutating a loaded slice changed stored history")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}
