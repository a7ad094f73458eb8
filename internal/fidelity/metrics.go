package fidelity

import (
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gorestruct/internal/page"
)

// Flag values attached to page stats.
const (
	FlagMissingOutputPage = "missing_output_page"
	FlagTextMismatch      = "text_mismatch"
	FlagCharCountDiff     = "char_count_diff"
)

// PageStat compares one source page against its processed counterpart.
type PageStat struct {
	Page        int      `json:"page"`
	CharsIn     int      `json:"chars_in"`
	CharsOut    int      `json:"chars_out"`
	WordsIn     int      `json:"words_in"`
	WordsOut    int      `json:"words_out"`
	SpecialIn   int      `json:"special_in"`
	SpecialOut  int      `json:"special_out"`
	ChecksumIn  string   `json:"checksum_in"`
	ChecksumOut string   `json:"checksum_out"`
	Flags       []string `json:"flags,omitempty"`
}

// Summary aggregates the per-page stats.
type Summary struct {
	TotalPages   int            `json:"total_pages"`
	FlaggedPages int            `json:"flagged_pages"`
	Flags        []string       `json:"flags,omitempty"`
	SpecialChars map[string]int `json:"special_chars,omitempty"`
}

// Report is the metrics artifact for one document run.
type Report struct {
	Pages   []PageStat `json:"pages"`
	Summary Summary    `json:"summary"`
}

// Compute pairs pre and post pages by page number and reports counts,
// checksums and divergence flags. Ordering follows pre; post pages without
// a pre counterpart are ignored.
func Compute(pre, post []page.Text) Report {
	postByPage := make(map[int]page.Text, len(post))
	for _, p := range post {
		postByPage[p.Page] = p
	}

	report := Report{Summary: Summary{
		TotalPages:   len(pre),
		SpecialChars: map[string]int{},
	}}
	for _, in := range pre {
		stat := PageStat{
			Page:       in.Page,
			CharsIn:    utf8.RuneCountInString(in.Raw),
			WordsIn:    len(Tokens(in.Raw)),
			SpecialIn:  countSpecial(in.Raw, report.Summary.SpecialChars),
			ChecksumIn: in.Checksum,
		}
		out, ok := postByPage[in.Page]
		if !ok {
			stat.Flags = append(stat.Flags, FlagMissingOutputPage)
		} else {
			stat.CharsOut = utf8.RuneCountInString(out.Raw)
			stat.WordsOut = len(Tokens(out.Raw))
			stat.SpecialOut = countSpecial(out.Raw, report.Summary.SpecialChars)
			stat.ChecksumOut = out.Checksum
			if in.Raw != out.Raw {
				stat.Flags = append(stat.Flags, FlagTextMismatch)
			}
			if stat.CharsIn != stat.CharsOut {
				stat.Flags = append(stat.Flags, FlagCharCountDiff)
			}
		}
		if len(stat.Flags) > 0 {
			report.Summary.FlaggedPages++
			report.Summary.Flags = append(report.Summary.Flags, stat.Flags...)
		}
		report.Pages = append(report.Pages, stat)
	}

	log.Info().
		Int("pages", report.Summary.TotalPages).
		Int("flagged", report.Summary.FlaggedPages).
		Msg("fidelity metrics computed")
	return report
}

// countSpecial counts runes above 127 and tallies them into counter.
func countSpecial(s string, counter map[string]int) int {
	n := 0
	for _, r := range s {
		if r > 127 {
			n++
			counter[string(r)]++
		}
	}
	return n
}
