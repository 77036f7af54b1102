package gate

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Marker strings recognised in phase documents.
const (
	ApprovedMarker         = "✅ Approved"
	RequiresChangesMarker  = "❌ Requires Changes"
	RequiresRevisionMarker = "❌ Requires Revision"
)

var rejectionMarkers = []string{RequiresChangesMarker, RequiresRevisionMarker}

// Oracle answers the questions the validator asks about a phase document.
// The scanning strategy lives entirely behind this interface.
type Oracle interface {
	// Name identifies the document in messages.
	Name() string
	Exists() (bool, error)
	// HasHeader reports whether any heading contains header, ignoring case.
	HasHeader(header string) (bool, error)
	// Approved reports whether a section matching title exists and whether
	// it carries an approval marker.
	Approved(title string) (found bool, approved bool, err error)
	// Rejections returns the titles of sections carrying a rejection marker.
	Rejections() ([]string, error)
	// Rejected reports whether the section matching title, subsections
	// included, carries a rejection marker.
	Rejected(title string) (bool, error)
	// Approve records a synthesized approval in the section matching title.
	Approve(title, justification string) error
}

// MarkdownDocument is an Oracle over a markdown file on disk. The file is
// re-read on every call.
type MarkdownDocument struct {
	Path string
}

// section is a heading and the line range it owns, up to the next heading of
// the same or a higher level.
type section struct {
	title string
	level int
	start int // index of the heading line
	end   int // index one past the last line of the section
}

const preambleTitle = "(preamble)"

func (d *MarkdownDocument) Name() string {
	return d.Path
}

func (d *MarkdownDocument) Exists() (bool, error) {
	info, err := os.Stat(d.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat phase document: %w", err)
	}
	return !info.IsDir(), nil
}

func (d *MarkdownDocument) HasHeader(header string) (bool, error) {
	lines, err := d.lines()
	if err != nil {
		return false, err
	}
	want := strings.ToLower(header)
	for _, s := range parseSections(lines) {
		if strings.Contains(strings.ToLower(s.title), want) {
			return true, nil
		}
	}
	return false, nil
}

func (d *MarkdownDocument) Approved(title string) (bool, bool, error) {
	lines, err := d.lines()
	if err != nil {
		return false, false, err
	}
	s, ok := findSection(parseSections(lines), title)
	if !ok {
		return false, false, nil
	}
	for _, line := range lines[s.start:s.end] {
		if containsFold(line, ApprovedMarker) {
			return true, true, nil
		}
	}
	return true, false, nil
}

func (d *MarkdownDocument) Rejections() ([]string, error) {
	lines, err := d.lines()
	if err != nil {
		return nil, err
	}

	// Attribute each line to the innermost heading above it.
	var rejected []string
	seen := make(map[string]bool)
	current := preambleTitle
	for _, line := range lines {
		if title, _, ok := parseHeading(line); ok {
			current = title
			continue
		}
		for _, marker := range rejectionMarkers {
			if containsFold(line, marker) && !seen[current] {
				seen[current] = true
				rejected = append(rejected, current)
			}
		}
	}
	return rejected, nil
}

func (d *MarkdownDocument) Rejected(title string) (bool, error) {
	lines, err := d.lines()
	if err != nil {
		return false, err
	}
	s, ok := findSection(parseSections(lines), title)
	if !ok {
		return false, nil
	}
	for _, line := range lines[s.start:s.end] {
		for _, marker := range rejectionMarkers {
			if containsFold(line, marker) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (d *MarkdownDocument) Approve(title, justification string) error {
	lines, err := d.lines()
	if err != nil {
		return err
	}
	s, ok := findSection(parseSections(lines), title)
	if !ok {
		return fmt.Errorf("section %q not found in %s", title, d.Path)
	}

	insert := s.end
	// Keep trailing blank lines after the inserted marker.
	for insert > s.start+1 && strings.TrimSpace(lines[insert-1]) == "" {
		insert--
	}
	marker := fmt.Sprintf("%s (autonomous): %s", ApprovedMarker, justification)

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:insert]...)
	out = append(out, marker)
	out = append(out, lines[insert:]...)

	info, err := os.Stat(d.Path)
	if err != nil {
		return fmt.Errorf("stat phase document: %w", err)
	}
	if err := writeFileAtomic(d.Path, []byte(strings.Join(out, "\n")+"\n"), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write phase document: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path through a temp file in the same directory,
// so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (d *MarkdownDocument) lines() ([]string, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("open phase document: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read phase document: %w", err)
	}
	return lines, nil
}

// parseHeading recognises ATX headings ("## Title").
func parseHeading(line string) (title string, level int, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", 0, false
	}
	level = len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
	rest := trimmed[level:]
	if level > 6 || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
		return "", 0, false
	}
	return strings.TrimSpace(rest), level, true
}

func parseSections(lines []string) []section {
	var sections []section
	for i, line := range lines {
		title, level, ok := parseHeading(line)
		if !ok {
			continue
		}
		sections = append(sections, section{title: title, level: level, start: i, end: len(lines)})
	}
	for i := range sections {
		for j := i + 1; j < len(sections); j++ {
			if sections[j].level <= sections[i].level {
				sections[i].end = sections[j].start
				break
			}
		}
	}
	return sections
}

func findSection(sections []section, title string) (section, bool) {
	for _, s := range sections {
		if containsFold(s.title, title) {
			return s, true
		}
	}
	return section{}, false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
