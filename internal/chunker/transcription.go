package chunker

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"ingestpipe/internal/embedding"
)

const transcriptionSummaryPrompt = "Summarize the following transcript in a few sentences, noting the speakers and main topics discussed:\n\n%s"

var vttCueTimingRE = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?[.,]\d{3}\s*-->\s*\d{2}:\d{2}(:\d{2})?[.,]\d{3}`)

// vttVoiceRE extracts WebVTT <v Speaker Name>text</v> voice tags.
var vttVoiceRE = regexp.MustCompile(`(?s)<v([^>]*)>(.*?)(</v>|$)`)

type vttCaption struct {
	Speaker string
	Text    string
}

// TranscriptionChunker parses WebVTT captions, coalesces consecutive
// captions by speaker, summarizes the whole transcript once via
// chat-completion, then splits the concatenated transcript (§4.6.4). Every
// chunk shares the summary as embedding text.
type TranscriptionChunker struct {
	params Params
	chat   *embedding.ChatClient
}

// NewTranscriptionChunker constructs a TranscriptionChunker with its
// parameters and chat-completion client captured.
func NewTranscriptionChunker(params Params, chat *embedding.ChatClient) *TranscriptionChunker {
	return &TranscriptionChunker{params: params, chat: chat}
}

func (c *TranscriptionChunker) Chunk(ctx context.Context, in Input) ([]Chunk, error) {
	captions := parseVTT(in.Content())
	if len(captions) == 0 {
		return nil, nil
	}
	coalesced := coalesceBySpeaker(captions)
	transcript := renderTranscript(coalesced)

	summary := transcript
	if c.chat != nil {
		if s, err := c.chat.Complete(ctx, fmt.Sprintf(transcriptionSummaryPrompt, transcript), 512); err == nil && s != "" {
			summary = s
		}
	}

	gen := NewGenericTextChunker(c.params, SubtypeProse, "")
	parts, err := gen.Chunk(ctx, Input{Filename: in.Filename, Text: transcript})
	if err != nil {
		return nil, err
	}
	for i := range parts {
		parts[i].EmbeddingText = summary
		parts[i].Summary = summary
	}
	return parts, nil
}

// parseVTT parses a WebVTT file into an ordered caption sequence, ignoring
// the WEBVTT header, cue identifiers, and timing lines, and stripping
// <v Speaker> voice tags into a speaker/text pair.
func parseVTT(raw string) []vttCaption {
	var captions []vttCaption
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var textLines []string
	flush := func() {
		if len(textLines) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(textLines, " "))
		textLines = nil
		if text == "" {
			return
		}
		speaker, body := splitVoice(text)
		captions = append(captions, vttCaption{Speaker: speaker, Text: body})
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case trimmed == "WEBVTT" || strings.HasPrefix(trimmed, "WEBVTT"):
			continue
		case vttCueTimingRE.MatchString(trimmed):
			flush()
		case isVTTCueID(trimmed):
			continue
		default:
			textLines = append(textLines, trimmed)
		}
	}
	flush()
	return captions
}

func isVTTCueID(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		if r == '-' || (r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

func splitVoice(line string) (speaker, text string) {
	m := vttVoiceRE.FindStringSubmatch(line)
	if m == nil {
		return "", line
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
}

// coalesceBySpeaker merges consecutive captions from the same speaker into
// one caption, the way a human transcript reads.
func coalesceBySpeaker(captions []vttCaption) []vttCaption {
	var out []vttCaption
	for _, cc := range captions {
		if n := len(out); n > 0 && out[n-1].Speaker == cc.Speaker {
			out[n-1].Text = strings.TrimSpace(out[n-1].Text + " " + cc.Text)
			continue
		}
		out = append(out, cc)
	}
	return out
}

func renderTranscript(captions []vttCaption) string {
	var b strings.Builder
	for _, c := range captions {
		if c.Speaker != "" {
			fmt.Fprintf(&b, "%s: %s\n", c.Speaker, c.Text)
		} else {
			fmt.Fprintf(&b, "%s\n", c.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

var _ Chunker = (*TranscriptionChunker)(nil)
