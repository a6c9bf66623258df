package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields no lines
// and no error.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

const timestampLayout = "2006-01-02 15:04:05"

// Line is a log line split into the fields watchwire's text formatter
// writes: "2006-01-02 15:04:05 [LEVEL] [component] message k=v".
type Line struct {
	Timestamp string
	Level     string
	Component string
	Message   string
}

// Parse splits a formatted log line. Lines in any other format come back
// with only Message set.
func Parse(raw string) Line {
	rest := raw
	var ts string
	if len(rest) > len(timestampLayout) && rest[len(timestampLayout)] == ' ' {
		if _, err := time.Parse(timestampLayout, rest[:len(timestampLayout)]); err == nil {
			ts, rest = rest[:len(timestampLayout)], rest[len(timestampLayout)+1:]
		}
	}

	level, rest, ok := bracket(rest)
	if !ok {
		return Line{Message: raw}
	}
	line := Line{Timestamp: ts, Level: level, Message: rest}
	if component, after, ok := bracket(rest); ok {
		line.Component = component
		line.Message = after
	}
	return line
}

func bracket(s string) (token, rest string, ok bool) {
	if !strings.HasPrefix(s, "[") {
		return "", s, false
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return "", s, false
	}
	return s[1:end], strings.TrimPrefix(s[end+1:], " "), true
}
