package render

import "strings"

// wrap breaks text into lines whose measured width does not exceed
// maxWidth points. Breaks happen at the nearest word boundary when one
// exists on the line, otherwise at the character boundary, so scripts
// without spaces (CJK) wrap correctly. A fixed character count would
// misjudge mixed-width glyphs, so every decision goes through the
// rasterizer's measurement.
func (r *Renderer) wrap(text, fontName string, size, maxWidth float64) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		lines = append(lines, r.wrapLine(paragraph, fontName, size, maxWidth)...)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

func (r *Renderer) wrapLine(text, fontName string, size, maxWidth float64) []string {
	if text == "" {
		return []string{""}
	}

	var lines []string
	runes := []rune(text)
	start := 0

	for start < len(runes) {
		end := start
		lastSpace := -1
		for end < len(runes) {
			candidate := string(runes[start : end+1])
			if r.ras.MeasureText(candidate, fontName, size) > maxWidth && end > start {
				break
			}
			if runes[end] == ' ' {
				lastSpace = end
			}
			end++
		}

		if end >= len(runes) {
			lines = append(lines, strings.TrimRight(string(runes[start:]), " "))
			break
		}

		brk := end
		if lastSpace > start {
			brk = lastSpace
		}
		lines = append(lines, strings.TrimRight(string(runes[start:brk]), " "))
		start = brk
		for start < len(runes) && runes[start] == ' ' {
			start++
		}
	}
	return lines
}
