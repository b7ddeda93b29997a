package report

import (
	"regexp"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

const (
	fontName = "Calibri"
	fontSize = 11
)

var (
	reHeading  = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	reBold     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBullet   = regexp.MustCompile(`^[\-\*]\s+(.+)$`)
	reNumbered = regexp.MustCompile(`^\d+\.\s+(.+)$`)
)

// WriteDocx converts the markdown report into a Word document at path.
// Headings become bold runs sized by level, bullets get a bullet glyph and
// **bold** spans keep their weight.
func WriteDocx(title, md, path string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return err
	}

	if title != "" {
		addStyledRun(doc.AddParagraph(""), title, true, 18)
	}

	for _, block := range docxBlocks(md) {
		p := doc.AddParagraph("")
		if block.heading > 0 {
			addStyledRun(p, block.text, true, headingSize(block.heading))
			continue
		}
		for _, r := range inlineRuns(block.text) {
			run := p.AddText(r.text).Font(fontName).Size(fontSize).Color("000000")
			if r.bold {
				run.Bold(true)
			}
		}
	}

	return doc.SaveTo(path)
}

type block struct {
	heading int
	text    string
}

// docxBlocks splits markdown into one block per non-empty line. Horizontal
// rules are dropped.
func docxBlocks(md string) []block {
	var blocks []block
	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "---" {
			continue
		}

		if m := reHeading.FindStringSubmatch(trimmed); m != nil {
			blocks = append(blocks, block{heading: len(m[1]), text: m[2]})
			continue
		}
		if m := reBullet.FindStringSubmatch(trimmed); m != nil {
			blocks = append(blocks, block{text: "• " + m[1]})
			continue
		}
		if reNumbered.MatchString(trimmed) {
			blocks = append(blocks, block{text: trimmed})
			continue
		}
		blocks = append(blocks, block{text: trimmed})
	}
	return blocks
}

type run struct {
	text string
	bold bool
}

func inlineRuns(text string) []run {
	parts := reBold.Split(text, -1)
	matches := reBold.FindAllStringSubmatch(text, -1)

	var runs []run
	for i, part := range parts {
		if part != "" {
			runs = append(runs, run{text: cleanInline(part)})
		}
		if i < len(matches) {
			runs = append(runs, run{text: cleanInline(matches[i][1]), bold: true})
		}
	}
	return runs
}

func headingSize(level int) uint64 {
	switch level {
	case 1:
		return 16
	case 2:
		return 14
	case 3:
		return 13
	default:
		return 12
	}
}

func addStyledRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(cleanInline(text)).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}

func cleanInline(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	s = strings.ReplaceAll(s, "`", "")
	return s
}
