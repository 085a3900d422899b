// Package chatlog parses exported group chat logs into timestamped messages.
package chatlog

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// messageStart matches the first line of an exported message:
// "24/08/25, 10:15 - Jane Doe: text". Exports use either a regular or a narrow
// no-break space before the am/pm marker.
var messageStart = regexp.MustCompile(
	`^(\d{1,2}/\d{1,2}/\d{2,4}),?\s*"?(\d{1,2}:\d{2}(?:[\s\x{202f}]?[apAP]\.?[mM]\.?)?)"?\s*-\s*(.*?):\s*(.*)`,
)

type Message struct {
	Timestamp time.Time
	Sender    string
	Body      string
}

// ParseError reports a message header whose timestamp could not be interpreted.
type ParseError struct {
	Line      int
	Timestamp string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: invalid timestamp %q: %v", e.Line, e.Timestamp, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Log is an immutable, ordered list of parsed messages.
type Log struct {
	messages []Message
}

func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.messages)
}

// Messages returns a copy of the parsed messages.
func (l *Log) Messages() []Message {
	if l == nil {
		return nil
	}
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// All iterates over the messages in log order. Every call starts from the first message.
func (l *Log) All() iter.Seq[Message] {
	return func(yield func(Message) bool) {
		if l == nil {
			return
		}
		for _, m := range l.messages {
			if !yield(m) {
				return
			}
		}
	}
}

// ParseFile parses the chat export stored at path.
func ParseFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chat log: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

func ParseString(raw string) (*Log, error) {
	return Parse(strings.NewReader(raw))
}

// Parse reads a chat export line by line. Lines that do not start a message are
// appended to the body of the current one; lines before the first message are
// ignored. Timestamps are interpreted in UTC.
func Parse(r io.Reader) (*Log, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		messages []Message
		current  *Message
		lineNo   int
	)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		match := messageStart.FindStringSubmatch(line)
		if match == nil {
			if current != nil {
				current.Body += "\n" + strings.TrimSpace(line)
			}
			continue
		}

		if current != nil {
			messages = append(messages, *current)
		}

		ts, err := parseTimestamp(match[1], match[2])
		if err != nil {
			return nil, &ParseError{Line: lineNo, Timestamp: match[1] + " " + match[2], Err: err}
		}

		current = &Message{
			Timestamp: ts,
			Sender:    strings.TrimSpace(match[3]),
			Body:      strings.TrimSpace(match[4]),
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chat log: %w", err)
	}

	if current != nil {
		messages = append(messages, *current)
	}

	return &Log{messages: messages}, nil
}

// parseTimestamp accepts day-first dates with two or four digit years and
// clock times either in 24-hour form or 12-hour form with an am/pm marker.
func parseTimestamp(date, clock string) (time.Time, error) {
	parts := strings.Split(date, "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("malformed date %q", date)
	}

	day, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	year, _ := strconv.Atoi(parts[2])
	if len(parts[2]) == 2 {
		year += 2000
	} else if len(parts[2]) != 4 {
		return time.Time{}, fmt.Errorf("malformed year %q", parts[2])
	}

	hour, minute, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if ts.Day() != day || int(ts.Month()) != month {
		return time.Time{}, fmt.Errorf("date %q does not exist", date)
	}

	return ts, nil
}

func parseClock(clock string) (int, int, error) {
	clock = strings.TrimSpace(clock)

	marker := ""
	lower := strings.ToLower(clock)
	if idx := strings.IndexAny(lower, "ap"); idx != -1 {
		marker = strings.NewReplacer(".", "", " ", "", "\u202f", "").Replace(lower[idx:])
		clock = strings.TrimRight(clock[:idx], " \u202f")
	}

	hh, mm, ok := strings.Cut(clock, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed time %q", clock)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed hour %q", hh)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute > 59 {
		return 0, 0, fmt.Errorf("malformed minute %q", mm)
	}

	switch marker {
	case "":
		if hour > 23 {
			return 0, 0, fmt.Errorf("hour %d out of range", hour)
		}
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("hour %d out of range for 12-hour clock", hour)
		}
		hour %= 12
		if marker == "pm" {
			hour += 12
		}
	default:
		return 0, 0, fmt.Errorf("unknown time marker %q", marker)
	}

	return hour, minute, nil
}
