package stream

import (
	"bufio"
	"io"
	"strings"
)

// Event is one server-sent event.
type Event struct {
	ID   string
	Name string
	Data string
}

const maxLine = 1 << 20

// Parse reads events from r and calls emit for each complete event until r
// is exhausted. Comment lines and events without data are skipped.
func Parse(r io.Reader, emit func(Event)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var ev Event
	var data []string
	dispatch := func() {
		if len(data) > 0 {
			ev.Data = strings.Join(data, "\n")
			emit(ev)
		}
		ev = Event{ID: ev.ID}
		data = data[:0]
	}
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			dispatch()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			data = append(data, value)
		case "event":
			ev.Name = value
		case "id":
			ev.ID = value
		}
	}
	return sc.Err()
}
