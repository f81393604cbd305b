package collect_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/menobass/hivepulse/internal/domain/collect"
	"github.com/menobass/hivepulse/internal/domain/model"
	"github.com/menobass/hivepulse/pkg/dateutil"
	"github.com/menobass/hivepulse/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const day = dateutil.Day("2024-03-15")

// fakeFetcher routes calls by method and sort parameter.
type fakeFetcher struct {
	posts    string
	comments string
	history  string
	err      error
	calls    int
}

func (f *fakeFetcher) Call(_ context.Context, method string, params any) (json.RawMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	switch method {
	case "bridge.get_account_posts":
		p := params.(map[string]any)
		if p["sort"] == "posts" {
			return json.RawMessage(f.posts), nil
		}
		return json.RawMessage(f.comments), nil
	case "condenser_api.get_account_history":
		return json.RawMessage(f.history), nil
	}
	return nil, errors.New("unexpected method " + method)
}

func historyEntry(ts, voter, author string, weight int) string {
	return `[0,{"timestamp":"` + ts + `","op":["vote",{"voter":"` + voter + `","author":"` + author + `","permlink":"p","weight":` + jsonInt(weight) + `}]}]`
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestCollector_Collect(t *testing.T) {
	Convey("Given a user with posts, comments, and votes", t, func() {
		fetcher := &fakeFetcher{
			posts:    `[{"author":"alice","created":"2024-03-15T08:00:00","permlink":"a"}]`,
			comments: `[{"author":"alice","created":"2024-03-15T09:00:00","parent_author":"bob","permlink":"b"}]`,
			history: `[` +
				historyEntry("2024-03-15T10:00:00", "alice", "bob", 10000) + `,` +
				historyEntry("2024-03-15T11:00:00", "carol", "alice", 5000) +
				`]`,
		}
		collector := collect.New(fetcher)

		Convey("When collecting the day window", func() {
			events, err := collector.Collect(context.Background(), "alice", day.DayWindow())

			Convey("Then every activity kind is represented", func() {
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 4)
				So(events[0].Kind, ShouldEqual, model.EventPost)
				So(events[1].Kind, ShouldEqual, model.EventComment)
				So(events[1].Target, ShouldEqual, "bob")
				So(events[2].Kind, ShouldEqual, model.EventVoteGiven)
				So(events[2].Target, ShouldEqual, "bob")
				So(events[3].Kind, ShouldEqual, model.EventVoteReceived)
				So(events[3].Target, ShouldEqual, "carol")
			})

			Convey("Then every event is attributed to the collected user", func() {
				So(err, ShouldBeNil)
				for _, ev := range events {
					So(ev.Actor, ShouldEqual, "alice")
				}
			})
		})
	})

	Convey("Given an invalid username", t, func() {
		fetcher := &fakeFetcher{}
		collector := collect.New(fetcher)

		Convey("When collecting", func() {
			_, err := collector.Collect(context.Background(), "Invalid_User", day.DayWindow())

			Convey("Then it fails before any network call", func() {
				So(err, ShouldWrap, collect.ErrInvalidUsername)
				So(fetcher.calls, ShouldEqual, 0)
			})
		})
	})

	Convey("Given an upstream failure", t, func() {
		fetcher := &fakeFetcher{err: errors.New("all endpoints exhausted")}
		collector := collect.New(fetcher)

		Convey("Then the collect fails with a wrapped error", func() {
			_, err := collector.Collect(context.Background(), "alice", day.DayWindow())
			So(err, ShouldWrap, collect.ErrCollectFailed)
		})
	})

	Convey("Given events outside the requested window", t, func() {
		fetcher := &fakeFetcher{
			posts: `[{"author":"alice","created":"2024-03-10T08:00:00"},` +
				`{"author":"alice","created":"2024-03-15T08:00:00"}]`,
			comments: `[]`,
			history:  `[]`,
		}
		collector := collect.New(fetcher)

		Convey("Then only in-window events are returned", func() {
			events, err := collector.Collect(context.Background(), "alice", day.DayWindow())
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 1)
		})
	})

	Convey("Given malformed upstream records", t, func() {
		fetcher := &fakeFetcher{
			posts: `[{"author":"alice","created":"2024-03-15T08:00:00"},` +
				`{"created":"2024-03-15T08:30:00"},` + // author missing
				`{"author":"alice","created":"not-a-time"}]`,
			comments: `[]`,
			history:  `[[0,{"timestamp":"2024-03-15T10:00:00","op":["vote","garbage"]}]]`,
		}
		collector := collect.New(fetcher)

		Convey("Then bad records are dropped, not fatal", func() {
			events, err := collector.Collect(context.Background(), "alice", day.DayWindow())
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 1)
		})
	})

	Convey("Given downvotes and third-party votes in history", t, func() {
		fetcher := &fakeFetcher{
			posts:    `[]`,
			comments: `[]`,
			history: `[` +
				historyEntry("2024-03-15T10:00:00", "alice", "bob", -10000) + `,` +
				historyEntry("2024-03-15T11:00:00", "carol", "dave", 10000) + `,` +
				historyEntry("2024-03-15T12:00:00", "alice", "bob", 0) +
				`]`,
		}
		collector := collect.New(fetcher)

		Convey("Then none of them count as activity", func() {
			events, err := collector.Collect(context.Background(), "alice", day.DayWindow())
			So(err, ShouldBeNil)
			So(events, ShouldBeEmpty)
		})
	})
}
