package service

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEventBus(t *testing.T) {
	Convey("Given a bus with one subscriber", t, func() {
		b := NewEventBus()
		s := b.Subscribe()

		Convey("Published events become ready and drain in order", func() {
			b.Publish(Event{Resource: ResourceCards, Action: "updated", ID: "a"})
			b.Publish(Event{Resource: ResourceControl, Action: "updated", ID: "a"})

			select {
			case <-s.Ready():
			default:
				t.Fatal("subscriber not signalled")
			}
			got := s.Drain()
			So(len(got), ShouldEqual, 2)
			So(got[0].Resource, ShouldEqual, ResourceCards)
			So(s.Drain(), ShouldBeEmpty)
		})

		Convey("Repeated events for the same key coalesce to the latest", func() {
			for i := 0; i < 1000; i++ {
				b.Publish(Event{Resource: ResourceProgress, Action: "updated"})
			}
			b.Publish(Event{Resource: ResourceProgress, Action: "loaded"})
			got := s.Drain()
			So(got, ShouldResemble, []Event{{Resource: ResourceProgress, Action: "loaded"}})
		})

		Convey("An unsubscribed subscriber receives nothing", func() {
			b.Unsubscribe(s)
			b.Publish(Event{Resource: ResourceLayers, ID: "a"})
			So(s.Drain(), ShouldBeEmpty)
		})
	})
}
