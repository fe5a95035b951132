package executor

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero/sys"
)

func TestEncodeRequest(t *testing.T) {
	data, err := encodeRequest("console.log(1)", "a\nb")
	if err != nil {
		t.Fatalf("encodeRequest: %v", err)
	}
	var req guestRequest
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Source != "console.log(1)" || req.Stdin != "a\nb" {
		t.Errorf("round trip mismatch: %+v", req)
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantOK     bool
		wantStdout string
		wantStray  string
		wantError  string
	}{
		{"no frame", "plain text", false, "", "plain text", ""},
		{"clean", replyPrefix + `{"stdout":"hi","stderr":"","error":null}` + frameSuffix, true, "hi", "", ""},
		{"with error", replyPrefix + `{"stdout":"a","stderr":"","error":{"message":"boom","text":"Error: boom","stack":""}}` + frameSuffix, true, "a", "", "boom"},
		{"stray around frame", "warn " + replyPrefix + `{"stdout":"x"}` + frameSuffix + "tail", true, "x", "warn tail", ""},
		{"unterminated", replyPrefix + `{"stdout":"x"}`, false, "", replyPrefix + `{"stdout":"x"}`, ""},
		{"bad json", replyPrefix + `{nope` + frameSuffix, false, "", replyPrefix + `{nope` + frameSuffix, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, stray, ok := parseReply(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if stray != tt.wantStray {
				t.Errorf("stray = %q, want %q", stray, tt.wantStray)
			}
			if reply.Stdout != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", reply.Stdout, tt.wantStdout)
			}
			gotError := ""
			if reply.Error != nil {
				gotError = reply.Error.Message
			}
			if gotError != tt.wantError {
				t.Errorf("error = %q, want %q", gotError, tt.wantError)
			}
		})
	}
}

func TestErrorSignalWriter(t *testing.T) {
	w := &errorSignalWriter{}
	w.Write([]byte("Traceback (most recent call last):\n"))
	w.Write([]byte("ValueError: bad\n" + errorPrefix + "bad" + frameSuffix))

	if got := w.String(); got != "Traceback (most recent call last):\nValueError: bad\n" {
		t.Errorf("stderr = %q", got)
	}
	if got := w.ErrorMessage(); got != "bad" {
		t.Errorf("message = %q, want %q", got, "bad")
	}
}

func TestErrorSignalWriterSplitWrites(t *testing.T) {
	w := &errorSignalWriter{}
	signal := "oops" + errorPrefix + "division by zero" + frameSuffix + "after"
	for i := 0; i < len(signal); i++ {
		w.Write([]byte{signal[i]})
	}

	if got := w.ErrorMessage(); got != "division by zero" {
		t.Errorf("message = %q", got)
	}
	if got := w.String(); got != "oopsafter" {
		t.Errorf("stderr = %q, want %q", got, "oopsafter")
	}
}

func TestErrorSignalWriterPlainText(t *testing.T) {
	w := &errorSignalWriter{}
	w.Write([]byte("just a warning\n"))
	if w.ErrorMessage() != "" {
		t.Errorf("unexpected message %q", w.ErrorMessage())
	}
	if w.String() != "just a warning\n" {
		t.Errorf("stderr = %q", w.String())
	}
}

func TestPartialPrefix(t *testing.T) {
	tests := []struct {
		s    string
		want int
	}{
		{"abc", 0},
		{"abc\x00", 1},
		{"abc\x00RUN", 4},
		{"", 0},
	}
	for _, tt := range tests {
		if got := partialPrefix(tt.s, errorPrefix); got != tt.want {
			t.Errorf("partialPrefix(%q) = %d, want %d", tt.s, got, tt.want)
		}
	}
}

func TestExitStatus(t *testing.T) {
	if code, ok := exitStatus(sys.NewExitError(3)); !ok || code != 3 {
		t.Errorf("exitStatus = %d, %v; want 3, true", code, ok)
	}
	if _, ok := exitStatus(errors.New("other")); ok {
		t.Error("plain error reported as exit")
	}
	if _, ok := exitStatus(nil); ok {
		t.Error("nil reported as exit")
	}
}

func TestFromReplyPlaceholder(t *testing.T) {
	tests := []struct {
		name  string
		reply guestReply
		want  string
	}{
		{"nothing printed", guestReply{}, NoOutput},
		{"empty line printed", guestReply{Printed: true}, ""},
		{"output", guestReply{Stdout: "hi", Printed: true}, "hi"},
		{"stderr only", guestReply{Stderr: "warn", Printed: true}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := fromReply(tt.reply)
			if res.Stdout != tt.want {
				t.Errorf("stdout = %q, want %q", res.Stdout, tt.want)
			}
			if !res.Success() {
				t.Errorf("expected success, got %+v", res)
			}
		})
	}
}
