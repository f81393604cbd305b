package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/menobass/hivepulse/internal/adapters/pool"
	"github.com/menobass/hivepulse/internal/adapters/repository"
	service "github.com/menobass/hivepulse/internal/app"
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

// scriptedCollector serves canned events per username and fails the
// ones listed in failing.
type scriptedCollector struct {
	events  map[string][]model.RawEvent
	failing map[string]error
}

func (s *scriptedCollector) Collect(_ context.Context, username string, _ dateutil.Window) ([]model.RawEvent, error) {
	if err, ok := s.failing[username]; ok {
		return nil, err
	}
	return s.events[username], nil
}

func repeatEvents(username string, kind model.EventKind, n int) []model.RawEvent {
	base := day.Time().Add(4 * time.Hour)
	events := make([]model.RawEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, model.RawEvent{
			Kind:      kind,
			Actor:     username,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	return events
}

func trackUsers(ctx context.Context, store repository.Store, usernames ...string) error {
	for _, username := range usernames {
		if err := store.UpsertTrackedUser(ctx, model.TrackedUser{Username: username, Active: true}); err != nil {
			return err
		}
	}
	return nil
}

func newService(store repository.Store, collector pool.Collector, opts ...service.Option) *service.Service {
	workers := pool.New(collector, pool.WithWorkers(4))
	return service.New(store, workers, opts...)
}

func TestService_RunDaily(t *testing.T) {
	Convey("Given three users with characteristic activity profiles", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		So(trackUsers(ctx, store, "usera", "userb", "userc"), ShouldBeNil)

		collector := &scriptedCollector{events: map[string][]model.RawEvent{
			"usera": repeatEvents("usera", model.EventPost, 10),
			"userb": repeatEvents("userb", model.EventComment, 46),
			"userc": repeatEvents("userc", model.EventVoteGiven, 484),
		}}
		svc := newService(store, collector)

		Convey("When running the daily pipeline", func() {
			report, err := svc.RunDaily(ctx, day)
			So(err, ShouldBeNil)

			Convey("Then the day's rewards follow the published schedule", func() {
				So(report.Ledger["usera"].Total, ShouldEqual, 20.0)
				So(report.Ledger["userb"].Total, ShouldEqual, 23.0)
				// 484 votes at 0.02 would be 9.68; the daily cap holds it at 0.5
				So(report.Ledger["userc"].Total, ShouldEqual, 0.5)
			})

			Convey("Then each champion category has exactly its leader", func() {
				So(report.Spotlights[model.CategoryPostChampion].Winners, ShouldResemble, []string{"usera"})
				So(report.Spotlights[model.CategoryCommentMaster].Winners, ShouldResemble, []string{"userb"})
				So(report.Spotlights[model.CategorySupportStar].Winners, ShouldResemble, []string{"userc"})
			})

			Convey("Then the ledger invariant holds for every user", func() {
				for _, entry := range report.Ledger {
					So(entry.NewBalance-entry.PriorBalance, ShouldEqual, entry.Total)
				}
			})

			Convey("Then the snapshot reflects the community totals", func() {
				So(report.Snapshot.Day, ShouldEqual, day)
				So(report.Snapshot.ActiveUsers, ShouldEqual, 3)
				So(report.Snapshot.TotalPosts, ShouldEqual, 10)
				So(report.Snapshot.TotalComments, ShouldEqual, 46)
				So(report.Snapshot.TotalVotesGiven, ShouldEqual, 484)
			})

			Convey("Then the run is tagged and warning-free", func() {
				So(report.RunID, ShouldNotBeEmpty)
				So(report.Warnings, ShouldBeEmpty)
			})

			Convey("Then the output is persisted", func() {
				snapshot, err := store.GetSnapshot(ctx, day)
				So(err, ShouldBeNil)
				So(snapshot, ShouldResemble, report.Snapshot)

				entry, err := store.GetLedgerEntry(ctx, "usera", day)
				So(err, ShouldBeNil)
				So(entry.NewBalance, ShouldEqual, 20.0)
			})
		})

		Convey("When running two consecutive days", func() {
			_, err := svc.RunDaily(ctx, day)
			So(err, ShouldBeNil)
			second, err := svc.RunDaily(ctx, day.Next())
			So(err, ShouldBeNil)

			Convey("Then balances accumulate across days", func() {
				So(second.Ledger["usera"].PriorBalance, ShouldEqual, 20.0)
				So(second.Ledger["usera"].NewBalance, ShouldEqual, 20.0)
			})

			Convey("Then day-two trends compare against day one", func() {
				So(second.Snapshot.PostsTrend.Pct, ShouldEqual, -100.0)
			})
		})

		Convey("When re-running the same day", func() {
			first, err := svc.RunDaily(ctx, day)
			So(err, ShouldBeNil)
			again, err := svc.RunDaily(ctx, day)
			So(err, ShouldBeNil)

			Convey("Then snapshot and ledger are identical", func() {
				So(again.Snapshot, ShouldResemble, first.Snapshot)
				So(again.Ledger, ShouldResemble, first.Ledger)
			})
		})
	})
}

func TestService_PartialFailure(t *testing.T) {
	Convey("Given one user whose collection fails", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		So(trackUsers(ctx, store, "alice", "bob"), ShouldBeNil)

		collector := &scriptedCollector{
			events: map[string][]model.RawEvent{
				"alice": repeatEvents("alice", model.EventPost, 2),
			},
			failing: map[string]error{
				"bob": errors.New("all endpoints exhausted"),
			},
		}
		svc := newService(store, collector)

		Convey("When running the pipeline", func() {
			report, err := svc.RunDaily(ctx, day)
			So(err, ShouldBeNil)

			Convey("Then the failed user degrades to zero activity", func() {
				So(report.Activities["bob"].TotalActions(), ShouldEqual, 0)
				So(report.Activities["bob"].Collected, ShouldBeFalse)
				So(report.Activities["alice"].Collected, ShouldBeTrue)
			})

			Convey("Then the failure is reported as a warning", func() {
				So(report.Warnings, ShouldHaveLength, 1)
				So(report.Warnings[0].Username, ShouldEqual, "bob")
				So(report.Warnings[0].Op, ShouldEqual, "collect")
				So(report.Warnings[0].Err, ShouldNotBeNil)
			})

			Convey("Then the quiet-but-collected state stays distinguishable", func() {
				stored, err := store.GetActivity(ctx, "bob", day)
				So(err, ShouldBeNil)
				So(stored.Collected, ShouldBeFalse)
			})
		})
	})
}

func TestService_InactiveUsers(t *testing.T) {
	Convey("Given an inactive registry entry", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		So(store.UpsertTrackedUser(ctx, model.TrackedUser{Username: "alice", Active: true}), ShouldBeNil)
		So(store.UpsertTrackedUser(ctx, model.TrackedUser{Username: "ghost", Active: false}), ShouldBeNil)

		collector := &scriptedCollector{events: map[string][]model.RawEvent{
			"alice": repeatEvents("alice", model.EventPost, 1),
			"ghost": repeatEvents("ghost", model.EventPost, 9),
		}}
		svc := newService(store, collector)

		Convey("Then inactive users are excluded from the run", func() {
			report, err := svc.RunDaily(ctx, day)
			So(err, ShouldBeNil)
			So(report.Activities, ShouldContainKey, "alice")
			So(report.Activities, ShouldNotContainKey, "ghost")
		})
	})
}

func TestService_EmptyRegistry(t *testing.T) {
	Convey("Given no tracked users", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		svc := newService(store, &scriptedCollector{})

		Convey("Then a run still produces an empty report", func() {
			report, err := svc.RunDaily(ctx, day)
			So(err, ShouldBeNil)
			So(report.Activities, ShouldBeEmpty)
			So(report.Spotlights, ShouldBeEmpty)
			So(report.Snapshot.HealthScore, ShouldEqual, 0.0)
		})
	})
}

// failingStore wraps MemStore and fails a single operation.
type failingStore struct {
	repository.Store
	failPutSnapshot bool
}

func (f *failingStore) PutSnapshot(ctx context.Context, snapshot model.CommunityDailySnapshot) error {
	if f.failPutSnapshot {
		return errors.New("disk full")
	}
	return f.Store.PutSnapshot(ctx, snapshot)
}

func TestService_StoreFailureAborts(t *testing.T) {
	Convey("Given a store that fails on snapshot writes", t, func() {
		ctx := context.Background()
		mem := repository.NewMemStore()
		So(trackUsers(ctx, mem, "alice"), ShouldBeNil)
		store := &failingStore{Store: mem, failPutSnapshot: true}

		collector := &scriptedCollector{events: map[string][]model.RawEvent{
			"alice": repeatEvents("alice", model.EventPost, 1),
		}}
		svc := newService(store, collector)

		Convey("Then the run aborts with a run failure", func() {
			_, err := svc.RunDaily(ctx, day)
			So(err, ShouldWrap, service.ErrRunFailed)
		})
	})
}
