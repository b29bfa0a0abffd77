package leads

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValidate_AcceptsWellFormedInput(t *testing.T) {
	if err := Validate(Normalize(johnDoe())); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidate_Phone(t *testing.T) {
	for _, p := range []string{"+12025550123", "442071838750", "+4915112345678"} {
		in := johnDoe()
		in.Phone = p
		if err := Validate(in); err != nil {
			t.Fatalf("%s: expected valid, got %v", p, err)
		}
	}
	for _, p := range []string{"+0123456", "+1 202 555 0123", "phone", "+1234567890123456"} {
		in := johnDoe()
		in.Phone = p
		var verr *ValidationError
		if err := Validate(in); !errors.As(err, &verr) || verr.Fields[0].Field != "phone" {
			t.Fatalf("%s: expected phone error, got %v", p, err)
		}
	}
}

func TestValidate_NameLength(t *testing.T) {
	in := johnDoe()
	long := make([]rune, 256)
	for i := range long {
		long[i] = 'a'
	}
	in.FirstName = string(long)
	var verr *ValidationError
	if err := Validate(in); !errors.As(err, &verr) || verr.Fields[0].Field != "firstName" {
		t.Fatalf("expected firstName error, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(CreateLeadInput{FirstName: " John ", Email: " John@Example.COM ", Phone: " +12025550123 "})
	if got.FirstName != "John" || got.Email != "john@example.com" || got.Phone != "+12025550123" {
		t.Fatalf("unexpected normalization %+v", got)
	}
}

func TestDate_JSON(t *testing.T) {
	d, err := ParseDate("1990-05-15")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"1990-05-15"` {
		t.Fatalf("unexpected encoding %s", b)
	}

	var back Date
	if err := json.Unmarshal([]byte(`"2000-02-29"`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.String() != "2000-02-29" {
		t.Fatalf("unexpected date %s", back)
	}
	if err := json.Unmarshal([]byte(`"2001-02-29"`), &back); err == nil {
		t.Fatalf("expected error for impossible date")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{&ValidationError{}, KindValidationFailed},
		{ErrDuplicateLead, KindDuplicateLead},
		{ErrRateLimited, KindRateLimited},
		{invalidArgument("x"), KindInvalidArgument},
		{ErrNotFound, KindNotFound},
		{storeFailure("op", errors.New("boom")), KindStoreFailure},
		{errors.New("unknown"), KindStoreFailure},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Fatalf("KindOf(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestValidate_RejectsUnstorableText(t *testing.T) {
	in := johnDoe()
	in.FirstName = "Jo\x00hn"
	in.LastName = "Do\te"
	in.AdditionalData = map[string]any{"k": "a\x00b"}

	var verr *ValidationError
	if err := Validate(Normalize(in)); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got := map[string]bool{}
	for _, f := range verr.Fields {
		got[f.Field] = true
	}
	for _, want := range []string{"firstName", "lastName", "additionalData"} {
		if !got[want] {
			t.Fatalf("expected %s error, got %+v", want, verr.Fields)
		}
	}
}

func TestValidate_AdditionalDataNested(t *testing.T) {
	in := johnDoe()
	in.AdditionalData = map[string]any{"tags": []any{"ok", map[string]any{"bad\x00key": 1}}}
	var verr *ValidationError
	if err := Validate(in); !errors.As(err, &verr) || verr.Fields[0].Field != "additionalData" {
		t.Fatalf("expected additionalData error, got %v", err)
	}

	in.AdditionalData = map[string]any{"note": "line one\nline two", "name": "Zoë"}
	if err := Validate(in); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}
