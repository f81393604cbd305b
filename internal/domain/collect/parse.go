package collect

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/menobass/hivepulse/internal/domain/model"
)

// Upstream timestamps carry no zone and are UTC by convention.
const upstreamTimeFormat = "2006-01-02T15:04:05"

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errMissingField
	}
	t, err := time.ParseInLocation(upstreamTimeFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

// contentPayload is the subset of a post or comment object we consume.
// Unknown fields are ignored by encoding/json and therefore dropped.
type contentPayload struct {
	Author       string `json:"author"`
	Created      string `json:"created"`
	ParentAuthor string `json:"parent_author"`
}

// parseContent normalizes one post or comment record.
func parseContent(raw json.RawMessage, kind model.EventKind) (model.RawEvent, error) {
	var p contentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.RawEvent{}, fmt.Errorf("unparseable %s record: %w", kind, err)
	}
	if p.Author == "" {
		return model.RawEvent{}, fmt.Errorf("%s record: %w", kind, errMissingField)
	}
	ts, err := parseTimestamp(p.Created)
	if err != nil {
		return model.RawEvent{}, fmt.Errorf("%s record: %w", kind, err)
	}
	ev := model.RawEvent{
		Kind:      kind,
		Actor:     p.Author,
		Timestamp: ts,
	}
	if kind == model.EventComment {
		ev.Target = p.ParentAuthor
	}
	return ev, nil
}

// historyOperation mirrors the operation half of one [index, operation]
// pair from the account history response.
type historyOperation struct {
	Timestamp string            `json:"timestamp"`
	Op        []json.RawMessage `json:"op"`
}

type votePayload struct {
	Voter  string `json:"voter"`
	Author string `json:"author"`
	Weight int    `json:"weight"`
}

// parseVoteHistory extracts vote events involving user from an account
// history result. Operations of other kinds are skipped; malformed vote
// records are returned in the dropped count.
func parseVoteHistory(raw json.RawMessage, user string) (events []model.RawEvent, dropped int) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 1
	}

	for _, entry := range entries {
		var pair []json.RawMessage
		if err := json.Unmarshal(entry, &pair); err != nil || len(pair) != 2 {
			dropped++
			continue
		}
		var op historyOperation
		if err := json.Unmarshal(pair[1], &op); err != nil || len(op.Op) != 2 {
			dropped++
			continue
		}
		var name string
		if err := json.Unmarshal(op.Op[0], &name); err != nil {
			dropped++
			continue
		}
		if name != "vote" {
			continue // other operation kinds are simply not activity we track
		}

		ev, err := parseVote(op, user)
		if err != nil {
			dropped++
			continue
		}
		if ev.Kind == "" {
			continue // vote between third parties; not this user's activity
		}
		events = append(events, ev)
	}
	return events, dropped
}

func parseVote(op historyOperation, user string) (model.RawEvent, error) {
	var v votePayload
	if err := json.Unmarshal(op.Op[1], &v); err != nil {
		return model.RawEvent{}, fmt.Errorf("unparseable vote record: %w", err)
	}
	if v.Voter == "" || v.Author == "" {
		return model.RawEvent{}, errMissingField
	}
	ts, err := parseTimestamp(op.Timestamp)
	if err != nil {
		return model.RawEvent{}, err
	}
	if v.Weight <= 0 {
		// Downvotes and vote removals do not count as support activity.
		return model.RawEvent{}, nil
	}

	switch {
	case v.Voter == user:
		return model.RawEvent{
			Kind:      model.EventVoteGiven,
			Actor:     user,
			Timestamp: ts,
			Target:    v.Author,
		}, nil
	case v.Author == user:
		return model.RawEvent{
			Kind:      model.EventVoteReceived,
			Actor:     user,
			Timestamp: ts,
			Target:    v.Voter,
		}, nil
	default:
		return model.RawEvent{}, nil
	}
}
