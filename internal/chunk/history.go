package chunk

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"time"

	"github.com/AlexZinkM/xdaghub/internal/common"
	"github.com/AlexZinkM/xdaghub/internal/model"
)

// DefaultGroupWindow is the time span within which remarks sharing a group
// tag are taken to belong to the same inscription.
const DefaultGroupWindow = 3 * time.Minute

// Group is a set of history entries that may form one fragment group.
type Group struct {
	Tag     string
	Start   int64 // unix ms of the entry that opened the group
	Entries []model.HistoryEntry
}

// Key identifies the group: tag followed by its start time.
func (g Group) Key() string {
	return g.Tag + formatMillis(g.Start)
}

// GroupHistory buckets entries by their 2-character remark prefix, joining an
// existing bucket when its start lies within window of the entry. Within a
// bucket, entries sharing the first 4 remark characters replace each other.
// This is a heuristic: unrelated transfers with the same prefix inside the
// window end up in the same group and make it fail to decode.
func GroupHistory(entries []model.HistoryEntry, window time.Duration) []Group {
	var groups []*Group
	slots := make(map[*Group]map[string]int)

	for _, e := range entries {
		tag := prefix(e.Remark, TagLen)

		var g *Group
		for _, cand := range groups {
			if cand.Tag == tag && absMillis(e.Time-cand.Start) <= window.Milliseconds() {
				g = cand
				break
			}
		}
		if g == nil {
			g = &Group{Tag: tag, Start: e.Time}
			groups = append(groups, g)
			slots[g] = make(map[string]int)
		}

		pos := prefix(e.Remark, 2*TagLen)
		if i, ok := slots[g][pos]; ok {
			g.Entries[i] = e
			continue
		}
		slots[g][pos] = len(g.Entries)
		g.Entries = append(g.Entries, e)
	}

	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	return out
}

// Restore decodes a group into an inscription. The award cost is the sum of
// the amounts of the data fragments.
func Restore(g Group) (*model.RestoredInscription, bool) {
	if len(g.Tag) != TagLen || len(g.Entries) < 2 {
		return nil, false
	}
	entries := append([]model.HistoryEntry(nil), g.Entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Remark < entries[j].Remark
	})

	remarks := make([]string, len(entries))
	for i, e := range entries {
		remarks[i] = e.Remark
	}
	payload, ok := Decode(g.Tag, remarks)
	if !ok {
		return nil, false
	}

	var award uint64
	for _, e := range entries {
		if IsTrailer(g.Tag, e.Remark) {
			continue
		}
		v, err := common.XDAGToNano(e.Amount)
		if err != nil {
			log.Debugw("skipping unparsable fragment amount", "group", g.Key(), "amount", e.Amount)
			continue
		}
		award += v
	}

	content, err := DecodeContent(payload)
	if err != nil {
		log.Debugw("restored payload is not an inscription", "group", g.Key(), "error", err)
		return nil, false
	}

	return &model.RestoredInscription{
		GroupKey:  g.Key(),
		Content:   content,
		AwardCost: common.NanoToXDAG(award),
		Time:      g.Start,
	}, true
}

// RestoreAll groups history and returns every inscription that decodes.
func RestoreAll(entries []model.HistoryEntry, window time.Duration) []model.RestoredInscription {
	var out []model.RestoredInscription
	for _, g := range GroupHistory(entries, window) {
		if r, ok := Restore(g); ok {
			out = append(out, *r)
		}
	}
	return out
}

// EncodeContent serializes inscription content as base64 JSON.
func EncodeContent(c model.InscriptionContent) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeContent parses base64 JSON inscription content.
func DecodeContent(payload string) (*model.InscriptionContent, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	var c model.InscriptionContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

func absMillis(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
