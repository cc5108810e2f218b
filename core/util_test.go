package core

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name      string
		phone     string
		defaultCC string
		want      string
	}{
		{name: "empty", phone: "", defaultCC: "243", want: ""},
		{name: "no digits", phone: "whatsapp:", defaultCC: "243", want: ""},
		{name: "E.164", phone: "+243810000001", defaultCC: "243", want: "+243810000001"},
		{name: "whatsapp prefix", phone: "whatsapp:+243810000001", defaultCC: "243", want: "+243810000001"},
		{name: "formatted", phone: " +243 (81) 000-0001 ", defaultCC: "243", want: "+243810000001"},
		{name: "00 prefix", phone: "00243810000001", defaultCC: "1", want: "+243810000001"},
		{name: "national with trunk zero", phone: "0810000001", defaultCC: "243", want: "+243810000001"},
		{name: "national without trunk zero", phone: "810000001", defaultCC: "+243", want: "+243810000001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.phone, tt.defaultCC); got != tt.want {
				t.Errorf("failed! NormalizePhone() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestCleanString(t *testing.T) {
	if got := CleanString("  Hello World \n"); got != "Hello World" {
		t.Errorf("failed! CleanString() = %q; want %q", got, "Hello World")
	}
	if got := CleanString("  Hello World \n", true); got != "hello world" {
		t.Errorf("failed! CleanString(lower) = %q; want %q", got, "hello world")
	}
}

func TestCleanOrderings(t *testing.T) {
	allowed := map[string]string{"last_message_at": "last_message_at", "name": "participant_name"}
	got := CleanOrderings([]DBOrdering{
		{Field: "name", Ascending: true},
		{Field: "password_hash"},
		{Field: "last_message_at"},
	}, allowed)

	want := []string{"participant_name ASC", "last_message_at DESC"}
	if len(got) != len(want) {
		t.Fatalf("failed! len = %d; want %d", len(got), len(want))
	}
	for i, ord := range got {
		if ord.String() != want[i] {
			t.Errorf("failed! ordering[%d] = %q; want %q", i, ord.String(), want[i])
		}
	}
}
