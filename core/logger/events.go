package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Event names written to the log.
const (
	EventSession = "session"
	EventCommand = "command"
	EventJob     = "job"
	EventBuiltin = "builtin"
	EventEditor  = "editor"
)

// Keys of every log entry.
const (
	KeyTimestampMicros = "timestamp_micros"
	KeySessionID       = "session_id"
	KeyEvent           = "event"
	KeyData            = "data"
)

// LogRecorder is a callback that stores entries in an external datastore.
type LogRecorder func(le *structpb.Struct) error

// EventLog captures what the interpreter ran.
type EventLog struct {
	Record LogRecorder
	Now    func() time.Time
}

// NewJSONLinesEventLog creates an EventLog that exports entries in newline
// delimited JSON object format.
func NewJSONLinesEventLog(w io.Writer) *EventLog {
	return &EventLog{
		Record: func(le *structpb.Struct) error {
			entry, err := protojson.Marshal(le)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
		Now: time.Now,
	}
}

// NewSession creates a logger with a fresh session ID.
func (l *EventLog) NewSession() *SessionLog {
	return &SessionLog{log: l, sessionID: uuid.NewString()}
}

// NopSessionLog discards every event.
func NopSessionLog() *SessionLog {
	return &SessionLog{}
}

// SessionLog records events with a shared session ID.
type SessionLog struct {
	log       *EventLog
	sessionID string
}

// SessionID returns the ID attached to every entry.
func (l *SessionLog) SessionID() string {
	return l.sessionID
}

// Record writes one event. data values must be representable as JSON:
// strings, numbers, bools, nil, []interface{} and map[string]interface{}.
func (l *SessionLog) Record(event string, data map[string]interface{}) error {
	if l == nil || l.log == nil {
		return nil
	}

	payload, err := structpb.NewStruct(data)
	if err != nil {
		return err
	}

	now := time.Now
	if l.log.Now != nil {
		now = l.log.Now
	}

	le := &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyTimestampMicros: structpb.NewNumberValue(float64(now().UnixNano() / int64(time.Microsecond))),
		KeySessionID:       structpb.NewStringValue(l.sessionID),
		KeyEvent:           structpb.NewStringValue(event),
		KeyData:            structpb.NewStructValue(payload),
	}}

	return l.log.Record(le)
}

// Strings converts a string slice for use in Record data.
func Strings(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *structpb.Struct)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var logEntry structpb.Struct
		if err := protojson.Unmarshal(rawEntry, &logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}
