package query

import (
	"strings"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// Reference is one citation entry derived from a vector hit. Index i in the
// reference list and in the context list always refer to the same hit.
type Reference struct {
	FileID     string  `json:"file_id"`
	FileName   string  `json:"file_name,omitempty"`
	FileURL    string  `json:"file_url,omitempty"`
	PageStart  int     `json:"page_start,omitempty"`
	PageEnd    int     `json:"page_end,omitempty"`
	RangeKnown bool    `json:"range_known"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
}

// NormalizePageRange accepts the delimited wire forms a stored hit may carry
// ("start_end", "start,end", optionally bracketed) and normalizes them to a
// pair. Malformed encodings degrade to "range unknown" rather than failing
// the request.
func NormalizePageRange(s string) (core.PageRange, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "[]()")
	s = strings.ReplaceAll(s, ",", "_")
	s = strings.ReplaceAll(s, " ", "")

	pr, err := core.ParsePageRange(s)
	if err != nil {
		return core.PageRange{}, false
	}
	return pr, true
}

// referenceFromHit builds the citation entry for one vector hit.
func referenceFromHit(hit *storage.VectorHit) Reference {
	ref := Reference{
		FileID:     hit.Record.FileID,
		FileName:   hit.Record.FileName,
		FileURL:    hit.Record.FileURL,
		ChunkIndex: hit.Record.ChunkIndex,
		Score:      hit.Score,
	}
	if pr, ok := NormalizePageRange(hit.Record.PageRange); ok {
		ref.PageStart = pr.Start
		ref.PageEnd = pr.End
		ref.RangeKnown = true
	}
	return ref
}

// citation renders the human-readable source tag used in the prompt context.
func (r Reference) citation() string {
	var sb strings.Builder
	name := r.FileName
	if name == "" {
		name = r.FileID
	}
	sb.WriteString(name)
	if r.RangeKnown {
		sb.WriteString(", pages ")
		sb.WriteString(pageSpan(r.PageStart, r.PageEnd))
	}
	if r.FileURL != "" {
		sb.WriteString(", ")
		sb.WriteString(r.FileURL)
	}
	return sb.String()
}
