package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	cases := map[string]string{
		"john.doe@example.com": "jo***@example.com",
		"ab@example.com":       "***@example.com",
		"not-an-email":         "***@***",
	}
	for in, want := range cases {
		if got := RedactEmail(in); got != want {
			t.Errorf("RedactEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedactPhone(t *testing.T) {
	if got := RedactPhone("+1 555 0123"); got != "***23" {
		t.Errorf("got %q", got)
	}
	if got := RedactPhone("12"); got != "***" {
		t.Errorf("short numbers must be fully masked, got %q", got)
	}
}

func TestRedactPIIValueByKey(t *testing.T) {
	if got := redactPIIValue("email", "john.doe@example.com"); got != "jo***@example.com" {
		t.Errorf("got %q", got)
	}
	if got := redactPIIValue("note", "ping john.doe@example.com today"); got != "ping jo***@example.com today" {
		t.Errorf("embedded email not redacted: %q", got)
	}
}
