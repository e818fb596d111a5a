package scanning

import "strings"

// cleanTranscription strips markdown fences and surrounding chatter from a
// model response, leaving only receipt lines. An unreadable receipt comes back
// empty, the same as Tesseract.
func cleanTranscription(text string) string {
	text = strings.TrimSpace(text)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		// Fence markers such as ``` or ```text
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		lines = append(lines, strings.TrimRight(line, " \t\r"))
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
