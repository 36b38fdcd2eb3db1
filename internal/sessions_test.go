package internal

import "testing"

func TestNormalizeRoomID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Lobby", "lobby"},
		{"  dev-room  ", "dev-room"},
		{"", DefaultRoom},
		{"   ", DefaultRoom},
		{"ROOM42", "room42"},
	}
	for _, tc := range cases {
		if got := NormalizeRoomID(tc.in); got != tc.want {
			t.Errorf("NormalizeRoomID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestJoinResolvesDefaults(t *testing.T) {
	reg := NewSessionRegistry()

	room, name := reg.Join("abcdef123456", "", "  ")
	if room != DefaultRoom {
		t.Fatalf("empty room should resolve to %q, got %q", DefaultRoom, room)
	}
	if name != "User abcdef" {
		t.Fatalf("blank name should resolve to a placeholder, got %q", name)
	}

	room, name = reg.Join("abcdef123456", "Dev", " Alice ")
	if room != "dev" || name != "Alice" {
		t.Fatalf("got room=%q name=%q", room, name)
	}
}

func TestCurrentRoomAndLeave(t *testing.T) {
	reg := NewSessionRegistry()

	if _, ok := reg.CurrentRoom("ghost"); ok {
		t.Fatalf("unjoined connection should have no room")
	}

	reg.Join("conn-1", "lobby", "Alice")
	room, ok := reg.CurrentRoom("conn-1")
	if !ok || room != "lobby" {
		t.Fatalf("got room=%q ok=%v", room, ok)
	}
	name, ok := reg.Name("conn-1")
	if !ok || name != "Alice" {
		t.Fatalf("got name=%q ok=%v", name, ok)
	}

	// re-join refreshes the name in place
	reg.Join("conn-1", "lobby", "Alicia")
	if name, _ := reg.Name("conn-1"); name != "Alicia" {
		t.Fatalf("re-join should refresh the name, got %q", name)
	}

	reg.Leave("conn-1")
	if _, ok := reg.CurrentRoom("conn-1"); ok {
		t.Fatalf("session should be gone after leave")
	}
	// leaving twice is fine
	reg.Leave("conn-1")
}
