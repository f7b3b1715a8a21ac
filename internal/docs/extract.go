package docs

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ctavolazzi/novasystem/internal/run"
)

// Fence languages treated as shell content. An unlabeled fence is also
// scanned, since READMEs frequently omit the language tag.
var shellLanguages = map[string]bool{
	"":         true,
	"sh":       true,
	"bash":     true,
	"shell":    true,
	"zsh":      true,
	"console":  true,
	"terminal": true,
}

// commandWord matches a plausible leading shell word for inline code
// spans. Inline spans are mostly identifiers and filenames; only spans
// that start with a command-like word and contain an argument are
// treated as candidate commands.
var commandWord = regexp.MustCompile(`^[a-z][a-zA-Z0-9_.+-]*$`)

// Extractor parses markdown documentation and extracts candidate shell
// commands from fenced code blocks and inline code spans.
//
// The goldmark parser is stateless with respect to Parse calls, so one
// Extractor is safe to share across runs.
type Extractor struct {
	md goldmark.Markdown
}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{md: goldmark.New()}
}

// Extract returns candidate commands found in the documentation file, in
// document order. Identical command text within one document is
// de-duplicated, keeping the first occurrence's line number. All
// returned commands are unapproved.
func (e *Extractor) Extract(doc run.Documentation) []run.ParsedCommand {
	source := []byte(doc.RawText)
	reader := text.NewReader(source)
	root := e.md.Parser().Parse(reader)

	var commands []run.ParsedCommand
	seen := make(map[string]bool)

	add := func(text string, line int) {
		text = strings.TrimSpace(text)
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		commands = append(commands, run.NewParsedCommand(text, doc.Path, line))
	}

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock:
			lang := string(node.Language(source))
			if !shellLanguages[strings.ToLower(lang)] {
				return ast.WalkContinue, nil
			}
			for _, cmd := range blockCommands(node.Lines(), source, strings.EqualFold(lang, "console")) {
				add(cmd.text, cmd.line)
			}
			return ast.WalkSkipChildren, nil

		case *ast.CodeBlock:
			// Indented blocks carry no language; scan them like an
			// unlabeled fence.
			for _, cmd := range blockCommands(node.Lines(), source, false) {
				add(cmd.text, cmd.line)
			}
			return ast.WalkSkipChildren, nil

		case *ast.CodeSpan:
			if txt, line := spanText(node, source); looksLikeCommand(txt) {
				add(txt, line)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return commands
}

// ExtractAll runs Extract over every documentation file and concatenates
// the results in discovery order.
func (e *Extractor) ExtractAll(documents []run.Documentation) []run.ParsedCommand {
	var all []run.ParsedCommand
	for _, doc := range documents {
		all = append(all, e.Extract(doc)...)
	}
	return all
}

type extracted struct {
	text string
	line int
}

// blockCommands turns the raw lines of a code block into commands.
// Prompt prefixes ("$ ", "> ") are stripped, comments and blank lines
// dropped, and backslash continuations joined. In consoleOnly mode
// (```console fences) only prompt-prefixed lines are commands; the rest
// is assumed to be captured output.
func blockCommands(lines *text.Segments, source []byte, consoleOnly bool) []extracted {
	var out []extracted
	var pending string
	pendingLine := 0

	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		raw := strings.TrimRight(string(seg.Value(source)), "\n")
		line := lineNumber(source, seg.Start)

		trimmed := strings.TrimSpace(raw)
		hadPrompt := false
		for _, prompt := range []string{"$ ", "> ", "# "} {
			if strings.HasPrefix(trimmed, prompt) {
				// "# " is a root prompt in console captures but a comment
				// in plain shell blocks; only treat it as a prompt there.
				if prompt == "# " && !consoleOnly {
					break
				}
				trimmed = strings.TrimSpace(trimmed[len(prompt):])
				hadPrompt = true
				break
			}
		}

		if pending != "" {
			// Continuation of a previous line. The trailing backslash is
			// dropped before joining so no stray space survives.
			pending += " " + strings.TrimSpace(strings.TrimSuffix(trimmed, `\`))
			if !strings.HasSuffix(trimmed, `\`) {
				out = append(out, extracted{text: strings.TrimSpace(pending), line: pendingLine})
				pending = ""
			}
			continue
		}

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if consoleOnly && !hadPrompt {
			continue
		}

		if strings.HasSuffix(trimmed, `\`) {
			pending = strings.TrimSpace(strings.TrimSuffix(trimmed, `\`))
			pendingLine = line
			continue
		}
		out = append(out, extracted{text: trimmed, line: line})
	}

	if pending != "" {
		out = append(out, extracted{text: strings.TrimSpace(pending), line: pendingLine})
	}
	return out
}

// spanText returns the text content and source line of an inline code span.
func spanText(node *ast.CodeSpan, source []byte) (string, int) {
	var sb strings.Builder
	line := 0
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		t, ok := c.(*ast.Text)
		if !ok {
			continue
		}
		if line == 0 {
			line = lineNumber(source, t.Segment.Start)
		}
		sb.Write(t.Segment.Value(source))
	}
	return strings.TrimSpace(sb.String()), line
}

// looksLikeCommand reports whether inline code text is plausibly a shell
// command rather than an identifier, path, or version string. It must
// have a command-like first word and at least one argument.
func looksLikeCommand(text string) bool {
	if text == "" || len(text) > 200 || strings.ContainsAny(text, "\n") {
		return false
	}
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return false
	}
	return commandWord.MatchString(fields[0])
}

// lineNumber returns the 1-based line of a byte offset in source.
func lineNumber(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	line := 1
	for _, b := range source[:offset] {
		if b == '\n' {
			line++
		}
	}
	return line
}
