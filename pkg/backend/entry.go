package backend

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/lineage/pkg/lineage"
)

// rawEntry accepts every field spelling the backend has used. Clients must
// only read it through [rawEntry.entry].
type rawEntry struct {
	Hash     string `json:"hash"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	ImgURL   string `json:"imgUrl"`
	ImageURL string `json:"image_url"`

	ParentHash      *string `json:"parentHash"`
	ParentHashSnake *string `json:"parent_hash"`

	PapacyStartDate      flexDate `json:"papacyStartDate"`
	PapacyStartDateSnake flexDate `json:"papacy_start_date"`
	StartDate            flexDate `json:"startDate"`
	StartDateSnake       flexDate `json:"start_date"`
}

// entry normalises the record. The papacy start date takes precedence over
// the generic start date, camelCase over snake_case.
func (r rawEntry) entry() lineage.Entry {
	e := lineage.Entry{
		ID:       strings.TrimSpace(firstNonEmpty(r.Hash, r.ID)),
		Name:     strings.TrimSpace(r.Name),
		Role:     strings.TrimSpace(r.Role),
		ImageURL: strings.TrimSpace(firstNonEmpty(r.ImgURL, r.ImageURL)),
	}
	switch {
	case r.ParentHash != nil:
		e.ParentID = strings.TrimSpace(*r.ParentHash)
	case r.ParentHashSnake != nil:
		e.ParentID = strings.TrimSpace(*r.ParentHashSnake)
	}
	for _, d := range []flexDate{r.PapacyStartDate, r.PapacyStartDateSnake, r.StartDate, r.StartDateSnake} {
		if !d.IsZero() {
			e.Start = d.Time
			break
		}
	}
	return e
}

// normalize converts raw records, dropping those without an id.
func normalize(raw []rawEntry) []lineage.Entry {
	out := make([]lineage.Entry, 0, len(raw))
	for _, r := range raw {
		if e := r.entry(); e.ID != "" {
			out = append(out, e)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// flexDate decodes an ISO date, an RFC 3339 timestamp or a bare year given
// as number or string. Anything else decodes to the zero time.
type flexDate struct{ time.Time }

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006-01", "2006"}

func (d *flexDate) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	} else {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return nil
		}
		s = n.String()
	}
	if year, err := strconv.Atoi(s); err == nil {
		if year > 0 {
			d.Time = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return nil
}
