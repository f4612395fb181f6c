package util

import "strings"

const (
	KakaoSeeMorePadding = 500
	KakaoZeroWidthSpace = "\u200b"
)

// ApplyKakaoSeeMorePadding puts instruction on the first line and pads it
// with zero-width spaces so KakaoTalk folds text behind "See more".
func ApplyKakaoSeeMorePadding(text, instruction string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	message := strings.TrimSpace(instruction)

	var builder strings.Builder
	builder.Grow(len(text) + KakaoSeeMorePadding*len(KakaoZeroWidthSpace) + len(message) + 1)
	builder.WriteString(message)
	builder.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
	if !strings.HasPrefix(text, "\n") {
		builder.WriteByte('\n')
	}
	builder.WriteString(text)
	return builder.String()
}

// StripLeadingHeader drops header and the line break after it.
func StripLeadingHeader(text, header string) string {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(header) == "" {
		return text
	}
	for _, candidate := range []string{
		header + "\r\n\r\n",
		header + "\n\n",
		header + "\r\n",
		header + "\n",
		header,
	} {
		if strings.HasPrefix(text, candidate) {
			return strings.TrimPrefix(text, candidate)
		}
	}
	return text
}

// ApplySeeMoreWithHeader moves a leading header into the folded first line.
func ApplySeeMoreWithHeader(text, header, fallback, suffix string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	body := StripLeadingHeader(text, header)
	instruction := strings.TrimSpace(header)
	if instruction == "" {
		instruction = strings.TrimSpace(fallback)
	} else if suffix != "" {
		instruction += suffix
	}
	return ApplyKakaoSeeMorePadding(body, instruction)
}
