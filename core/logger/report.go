package logger

import (
	"encoding/json"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"
)

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	Sessions StrCounter `json:"sessions"`
	Events   StrCounter `json:"events"`

	Command CommandReport `json:"command_report"`
	Job     JobReport     `json:"job_report"`
	Editor  EditorReport  `json:"editor_report"`
}

// Update adds one entry to the report.
func (r *Report) Update(le *structpb.Struct) {
	r.LogEntries++

	fields := le.GetFields()
	event := fields[KeyEvent].GetStringValue()
	data := fields[KeyData].GetStructValue().GetFields()

	r.Sessions.Increment(fields[KeySessionID].GetStringValue())

	switch event {
	case EventCommand:
		r.Events.Increment(event)
		r.Command.update(data)
	case EventJob, EventBuiltin:
		r.Events.Increment(event)
		r.Job.update(data)
	case EventEditor:
		r.Events.Increment(event)
		r.Editor.update(data)
	case EventSession:
		r.Events.Increment(event)
	default:
		r.InvalidEntries.Increment(event)
	}
}

type CommandReport struct {
	// Number of stages of each command.
	PipelineLengths StrCounter `json:"pipeline_lengths"`
	// Number of commands sent to the background.
	Background int `json:"background"`
}

func (r *CommandReport) update(data map[string]*structpb.Value) {
	stages := data["stages"].GetListValue().GetValues()
	r.PipelineLengths.Increment(jsonString(len(stages)))
	if data["background"].GetBoolValue() {
		r.Background++
	}
}

type JobReport struct {
	// Name of the command
	CommandNames StrCounter `json:"command_names"`
	// Commands that failed and why.
	Failures *PathCounter `json:"failures"`
}

func (r *JobReport) update(data map[string]*structpb.Value) {
	name := ""
	if argv := data["argv"].GetListValue().GetValues(); len(argv) > 0 {
		name = argv[0].GetStringValue()
	}
	r.CommandNames.Increment(name)

	if msg := data["error"].GetStringValue(); msg != "" {
		if r.Failures == nil {
			r.Failures = NewPathCounter("command", "error")
		}
		r.Failures.Increment(name, msg)
	}
}

type EditorReport struct {
	Files StrCounter `json:"files"`
	Lines int        `json:"lines"`
	Words int        `json:"words"`
	Chars int        `json:"chars"`
}

func (r *EditorReport) update(data map[string]*structpb.Value) {
	r.Files.Increment(data["path"].GetStringValue())
	r.Lines += int(data["lines"].GetNumberValue())
	r.Words += int(data["words"].GetNumberValue())
	r.Chars += int(data["chars"].GetNumberValue())
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of tuples seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Get returns the count for the tuple.
func (ctr *PathCounter) Get(vals ...string) int {
	if ctr == nil {
		return 0
	}
	return ctr.internal[toKey(vals...)]
}

// MarshalJSON implemnts custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	var out []Count
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}

func jsonString(v interface{}) string {
	out, _ := json.Marshal(v)
	return string(out)
}
