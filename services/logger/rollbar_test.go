package logsvc

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
	"github.com/trezcool/masomo-connect/core/user"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	l := NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "test"})
	l.Enable(false)
	return l
}

func TestRollbarLogger_prepare(t *testing.T) {
	l := newTestLogger(new(bytes.Buffer))
	err := errors.New("boom")
	args := l.prepare("msg", []interface{}{
		err,
		user.User{ID: "u1", Username: "john"},
		messaging.Conversation{ID: "c1", ParticipantType: messaging.ParticipantParent},
		map[string]interface{}{"attempt": 2},
	})

	if len(args) != 3 {
		t.Fatalf("failed! len(args) = %d; want 3", len(args))
	}
	if args[0] != "msg" || args[1] != err {
		t.Errorf("failed! args = %v; want [msg boom extras]", args)
	}
	extras, ok := args[2].(map[string]interface{})
	if !ok {
		t.Fatalf("failed! args[2] = %T; want map[string]interface{}", args[2])
	}
	if extras["conversation_id"] != "c1" || extras["attempt"] != 2 {
		t.Errorf("failed! extras = %v", extras)
	}
}

func TestRollbarLogger_print(t *testing.T) {
	buf := new(bytes.Buffer)
	l := newTestLogger(buf)
	l.Warn("window expired", messaging.Conversation{ID: "c1"})
	if out := buf.String(); !strings.Contains(out, "window expired") {
		t.Errorf("failed! output = %q; want the message", out)
	}
}
