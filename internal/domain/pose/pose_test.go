package pose

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGeometry(t *testing.T) {
	Convey("Given two landmarks", t, func() {
		a := Landmark{X: 0, Y: 0, Z: 5}
		b := Landmark{X: 0.3, Y: 0.4, Z: -5}

		Convey("Distance ignores depth", func() {
			So(Distance(a, b), ShouldAlmostEqual, 0.5, 1e-12)
		})

		Convey("Midpoint averages both axes", func() {
			m := Midpoint(a, b)
			So(m.X, ShouldAlmostEqual, 0.15, 1e-12)
			So(m.Y, ShouldAlmostEqual, 0.2, 1e-12)
		})
	})

	Convey("Complete requires the full layout", t, func() {
		So(Complete(nil), ShouldBeFalse)
		So(Complete(make([]Landmark, NumLandmarks-1)), ShouldBeFalse)
		So(Complete(make([]Landmark, NumLandmarks)), ShouldBeTrue)
	})
}

func TestFootReference(t *testing.T) {
	Convey("Foot references map to layout indices", t, func() {
		l, r := FootHeel.Feet()
		So([]int{l, r}, ShouldResemble, []int{LeftHeel, RightHeel})

		l, r = FootAnkle.Feet()
		So([]int{l, r}, ShouldResemble, []int{LeftAnkle, RightAnkle})

		l, r = FootReference("toes").Feet()
		So([]int{l, r}, ShouldResemble, []int{29, 30})

		So(FootAnkle.Valid(), ShouldBeTrue)
		So(FootReference("toes").Valid(), ShouldBeFalse)
	})
}
