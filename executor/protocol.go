package executor

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/sys"
)

// Guest protocol. The host writes one JSON request to the guest's stdin.
// The JavaScript guest answers with a single frame on stdout:
//
//	\x00RUNBOX:{json}\x00
//
// The Python guest writes its streams directly and, when guest code raises,
// signals the exception message on stderr as \x00RUNBOX_ERROR:msg\x00.
const (
	replyPrefix  = "\x00RUNBOX:"
	errorPrefix  = "\x00RUNBOX_ERROR:"
	frameSuffix  = "\x00"
	maxFrameScan = 64 << 10
)

type guestRequest struct {
	Source string `json:"source"`
	Stdin  string `json:"stdin"`
}

type guestError struct {
	Message string `json:"message"`
	Text    string `json:"text"`
	Stack   string `json:"stack"`
}

// guestReply is the JavaScript guest's answer. Printed is set once guest
// code called any console method, even with an empty string.
type guestReply struct {
	Stdout  string      `json:"stdout"`
	Stderr  string      `json:"stderr"`
	Error   *guestError `json:"error"`
	Printed bool        `json:"printed"`
}

func encodeRequest(source, stdin string) ([]byte, error) {
	return json.Marshal(guestRequest{Source: source, Stdin: stdin})
}

// parseReply extracts the reply frame from raw guest stdout. Anything the
// interpreter printed outside the frame is returned as stray.
func parseReply(raw string) (reply guestReply, stray string, ok bool) {
	start := strings.Index(raw, replyPrefix)
	if start == -1 {
		return guestReply{}, raw, false
	}
	body := raw[start+len(replyPrefix):]
	end := strings.Index(body, frameSuffix)
	if end == -1 {
		return guestReply{}, raw, false
	}
	if err := json.Unmarshal([]byte(body[:end]), &reply); err != nil {
		return guestReply{}, raw, false
	}
	return reply, raw[:start] + body[end+len(frameSuffix):], true
}

// syncBuffer is a bytes.Buffer safe for a guest writing while the host
// snapshots it after a timeout.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(data)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// errorSignalWriter is the guest's stderr. Plain text passes through to the
// captured stderr; an error signal is stripped out and its message kept.
type errorSignalWriter struct {
	mu      sync.Mutex
	pending bytes.Buffer
	stderr  bytes.Buffer
	message string
}

func (w *errorSignalWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending.Write(data)
	for {
		content := w.pending.String()
		idx := strings.Index(content, errorPrefix)
		if idx == -1 {
			// Hold back a possible partial prefix at the tail.
			keep := partialPrefix(content, errorPrefix)
			w.stderr.WriteString(content[:len(content)-keep])
			w.pending.Reset()
			w.pending.WriteString(content[len(content)-keep:])
			break
		}

		w.stderr.WriteString(content[:idx])
		rest := content[idx+len(errorPrefix):]
		end := strings.Index(rest, frameSuffix)
		if end == -1 {
			if len(rest) > maxFrameScan {
				// Not a signal the prelude would write; keep it as text.
				w.stderr.WriteString(content[idx:])
				w.pending.Reset()
				break
			}
			w.pending.Reset()
			w.pending.WriteString(content[idx:])
			break
		}

		w.message = rest[:end]
		w.pending.Reset()
		w.pending.WriteString(rest[end+len(frameSuffix):])
	}
	return len(data), nil
}

// String returns the captured stderr, without error signals.
func (w *errorSignalWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stderr.String() + w.pending.String()
}

// ErrorMessage returns the last signalled exception message, or "".
func (w *errorSignalWriter) ErrorMessage() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.message
}

// partialPrefix returns the length of the longest suffix of s that is a
// proper prefix of prefix.
func partialPrefix(s, prefix string) int {
	n := min(len(s), len(prefix)-1)
	for ; n > 0; n-- {
		if strings.HasSuffix(s, prefix[:n]) {
			return n
		}
	}
	return 0
}

// exitStatus reports the guest's exit code when err is a WASI exit.
func exitStatus(err error) (uint32, bool) {
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}
